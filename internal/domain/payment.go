package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentNew           PaymentStatus = "NEW"
	PaymentInProgress    PaymentStatus = "IN_PROGRESS"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentFailed        PaymentStatus = "FAILED"
)

var ErrInvalidTransition = errors.New("invalid payment status transition")

// allowed lists the statuses a payment may move to from a given status.
// PAID and FAILED have no outgoing edges.
var allowed = map[PaymentStatus][]PaymentStatus{
	PaymentNew:           {PaymentInProgress, PaymentPartiallyPaid, PaymentPaid, PaymentFailed},
	PaymentInProgress:    {PaymentPartiallyPaid, PaymentPaid, PaymentFailed},
	PaymentPartiallyPaid: {PaymentPaid},
}

type Payment struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Status     PaymentStatus
	AmountPaid decimal.Decimal
	PaidOn     *time.Time
	ExternalID string
	Backend    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentNew, PaymentInProgress, PaymentPartiallyPaid, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

func (p *Payment) CanTransition(to PaymentStatus) bool {
	for _, s := range allowed[p.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// ChangeStatus moves the payment to status to. Re-applying the current
// status reports changed=false and no error.
func (p *Payment) ChangeStatus(to PaymentStatus) (changed bool, err error) {
	if p.Status == to {
		return false, nil
	}
	if !p.CanTransition(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	return true, nil
}

// RecordPayment books a confirmed gateway amount and settles the status:
// PAID once the paid amount covers Amount, PARTIALLY_PAID otherwise.
// Every confirmation stamps PaidOn; AmountPaid is never lowered.
func (p *Payment) RecordPayment(paid decimal.Decimal, at time.Time) (changed bool, err error) {
	if p.Status.Terminal() {
		return false, nil
	}
	if paid.GreaterThan(p.AmountPaid) {
		p.AmountPaid = paid
		changed = true
	}
	paidOn := at.UTC()
	if p.PaidOn == nil || !p.PaidOn.Equal(paidOn) {
		p.PaidOn = &paidOn
		changed = true
	}

	target := PaymentPartiallyPaid
	if p.AmountPaid.GreaterThanOrEqual(p.Amount) {
		target = PaymentPaid
	}
	statusChanged, err := p.ChangeStatus(target)
	if err != nil {
		return changed, err
	}
	return changed || statusChanged, nil
}
