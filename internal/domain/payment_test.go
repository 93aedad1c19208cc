package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_ChangeStatus(t *testing.T) {
	t.Run("same status is a no-op", func(t *testing.T) {
		p := &Payment{Status: PaymentPaid}
		changed, err := p.ChangeStatus(PaymentPaid)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("terminal status cannot move", func(t *testing.T) {
		p := &Payment{Status: PaymentPaid}
		_, err := p.ChangeStatus(PaymentFailed)
		require.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Equal(t, PaymentPaid, p.Status)
	})

	t.Run("partially paid may still become paid", func(t *testing.T) {
		p := &Payment{Status: PaymentPartiallyPaid}
		changed, err := p.ChangeStatus(PaymentPaid)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("partially paid cannot fail", func(t *testing.T) {
		p := &Payment{Status: PaymentPartiallyPaid}
		_, err := p.ChangeStatus(PaymentFailed)
		require.Error(t, err)
	})
}

func TestPayment_RecordPayment(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full amount settles as paid", func(t *testing.T) {
		p := &Payment{Status: PaymentInProgress, Amount: decimal.RequireFromString("100.00")}
		changed, err := p.RecordPayment(decimal.RequireFromString("100.00"), now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, PaymentPaid, p.Status)
		require.NotNil(t, p.PaidOn)
		assert.Equal(t, now, *p.PaidOn)
	})

	t.Run("short amount settles as partially paid", func(t *testing.T) {
		p := &Payment{Status: PaymentInProgress, Amount: decimal.RequireFromString("150.00")}
		_, err := p.RecordPayment(decimal.RequireFromString("100.00"), now)
		require.NoError(t, err)
		assert.Equal(t, PaymentPartiallyPaid, p.Status)
		assert.True(t, p.AmountPaid.Equal(decimal.RequireFromString("100")))
	})

	t.Run("amount paid never decreases", func(t *testing.T) {
		p := &Payment{
			Status:     PaymentPartiallyPaid,
			Amount:     decimal.RequireFromString("150.00"),
			AmountPaid: decimal.RequireFromString("100.00"),
			PaidOn:     &now,
		}
		changed, err := p.RecordPayment(decimal.RequireFromString("50.00"), now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, p.AmountPaid.Equal(decimal.RequireFromString("100")))
		assert.Equal(t, PaymentPartiallyPaid, p.Status)
	})

	t.Run("repeated confirmation refreshes paid on", func(t *testing.T) {
		p := &Payment{Status: PaymentInProgress, Amount: decimal.RequireFromString("150.00")}
		_, err := p.RecordPayment(decimal.RequireFromString("100.00"), now)
		require.NoError(t, err)

		later := now.Add(time.Minute)
		changed, err := p.RecordPayment(decimal.RequireFromString("100.00"), later)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, PaymentPartiallyPaid, p.Status)
		assert.True(t, p.AmountPaid.Equal(decimal.RequireFromString("100")))
		require.NotNil(t, p.PaidOn)
		assert.Equal(t, later, *p.PaidOn)
	})

	t.Run("terminal payment is left alone", func(t *testing.T) {
		paidOn := now.Add(-time.Hour)
		p := &Payment{
			Status:     PaymentPaid,
			Amount:     decimal.RequireFromString("100.00"),
			AmountPaid: decimal.RequireFromString("100.00"),
			PaidOn:     &paidOn,
		}
		changed, err := p.RecordPayment(decimal.RequireFromString("200.00"), now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, p.AmountPaid.Equal(decimal.RequireFromString("100")))
		assert.Equal(t, paidOn, *p.PaidOn)
	})
}
