package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrQueueFull  = errors.New("reconciliation queue full")
	ErrPoolClosed = errors.New("reconciliation pool closed")
)

// ReconcileJob is the work a verified notification schedules.
type ReconcileJob struct {
	PaymentID uuid.UUID `json:"payment_id"`
	SessionID string    `json:"session_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	OrderID   string    `json:"order_id"`
}

// Key identifies one notification; redeliveries share it.
func (j ReconcileJob) Key() string {
	return strings.Join([]string{j.SessionID, j.OrderID, j.Amount, j.Currency}, "|")
}

// Executor runs reconciliation jobs outside the request that submitted them.
type Executor interface {
	Submit(ctx context.Context, job ReconcileJob) (*JobHandle, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, job ReconcileJob) error
}

// JobHandle lets a submitter observe a job it does not wait for.
type JobHandle struct {
	ID   string
	done chan struct{}
	err  error
}

func newJobHandle() *JobHandle {
	return &JobHandle{ID: uuid.NewString(), done: make(chan struct{})}
}

func (h *JobHandle) complete(err error) {
	h.err = err
	close(h.done)
}

// Done is closed once the executor is finished with the job.
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Err is meaningful only after Done is closed.
func (h *JobHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *JobHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
