package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/repo"
)

var _ repo.PaymentRepo = (*PaymentRepo)(nil)
var _ repo.OrderRepo = (*OrderRepo)(nil)

func TestPaymentRepo_Modify(t *testing.T) {
	ctx := context.Background()
	r := NewPaymentRepo()
	p := &domain.Payment{ID: uuid.New(), Amount: decimal.NewFromInt(10), Status: domain.PaymentNew}
	require.NoError(t, r.CreatePayment(ctx, p))
	require.ErrorIs(t, r.CreatePayment(ctx, p), ErrDuplicate)

	t.Run("changes are persisted", func(t *testing.T) {
		err := r.Modify(ctx, p.ID, func(payment *domain.Payment) error {
			_, err := payment.ChangeStatus(domain.PaymentInProgress)
			return err
		})
		require.NoError(t, err)

		got, err := r.FindById(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentInProgress, got.Status)
	})

	t.Run("failed callback discards changes", func(t *testing.T) {
		boom := errors.New("boom")
		err := r.Modify(ctx, p.ID, func(payment *domain.Payment) error {
			payment.Status = domain.PaymentFailed
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, _ := r.FindById(ctx, p.ID)
		assert.Equal(t, domain.PaymentInProgress, got.Status)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		err := r.Modify(ctx, p.ID, func(payment *domain.Payment) error {
			payment.Status = domain.PaymentFailed
			return repo.ErrNoChange
		})
		require.NoError(t, err)

		got, _ := r.FindById(ctx, p.ID)
		assert.Equal(t, domain.PaymentInProgress, got.Status)
	})

	t.Run("unknown payment", func(t *testing.T) {
		err := r.Modify(ctx, uuid.New(), func(payment *domain.Payment) error { return nil })
		require.ErrorIs(t, err, repo.ErrNotFound)
		_, err = r.FindById(ctx, uuid.New())
		require.ErrorIs(t, err, repo.ErrNotFound)
	})
}

func TestPaymentRepo_ModifySerializesWriters(t *testing.T) {
	ctx := context.Background()
	r := NewPaymentRepo()
	p := &domain.Payment{ID: uuid.New(), Amount: decimal.NewFromInt(1000)}
	require.NoError(t, r.CreatePayment(ctx, p))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Modify(ctx, p.ID, func(payment *domain.Payment) error {
				payment.AmountPaid = payment.AmountPaid.Add(decimal.NewFromInt(1))
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := r.FindById(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(50)))
}

func TestOrderRepo(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepo()
	o := &domain.Order{ID: uuid.New(), Description: "books"}
	require.NoError(t, r.CreateOrder(ctx, o))

	got, err := r.FindById(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "books", got.Description)

	_, err = r.FindById(ctx, uuid.New())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
