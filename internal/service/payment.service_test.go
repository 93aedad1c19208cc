package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/repo"
	"getpaid-p24/internal/repo/memory"
)

func newTestPaymentService(t *testing.T, gw przelewy24.PaymentGateway) (PaymentService, *memory.PaymentRepo) {
	t.Helper()
	payments := memory.NewPaymentRepo()
	return NewPaymentService(memory.NewOrderRepo(), payments, gw, "przelewy24", zap.NewNop()), payments
}

func seedCheckout(t *testing.T, svc PaymentService) (*domain.Order, *domain.Payment) {
	t.Helper()
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, domain.Order{Description: "Order #1", BuyerEmail: "buyer@example.com"})
	require.NoError(t, err)
	payment, err := svc.CreatePayment(ctx, order.ID, decimal.RequireFromString("49.99"), "pln")
	require.NoError(t, err)
	return order, payment
}

func TestPaymentService_CreatePayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPaymentService(t, newMockGateway(t))

	t.Run("new payment starts unpaid", func(t *testing.T) {
		_, p := seedCheckout(t, svc)
		assert.Equal(t, domain.PaymentNew, p.Status)
		assert.Equal(t, "PLN", p.Currency)
		assert.True(t, p.AmountPaid.IsZero())
		assert.Equal(t, "przelewy24", p.Backend)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.CreatePayment(ctx, uuid.New(), decimal.Zero, "PLN")
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.CreatePayment(ctx, uuid.New(), decimal.NewFromInt(1), "PLN")
		require.ErrorIs(t, err, repo.ErrNotFound)
	})
}

func TestPaymentService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted registration is persisted", func(t *testing.T) {
		gw := newMockGateway(t)
		svc, payments := newTestPaymentService(t, gw)
		order, p := seedCheckout(t, svc)

		gw.On("RegisterTransaction", mock.Anything, mock.AnythingOfType("*domain.Payment"), *order).
			Return(func(p *domain.Payment) przelewy24.Registration {
				p.Status = domain.PaymentInProgress
				return przelewy24.Registration{
					Outcome: przelewy24.RegistrationAccepted,
					URL:     "https://sandbox.przelewy24.pl/trnRequest/abc",
					Method:  http.MethodPost,
					Params:  url.Values{"p24_amount": {"4999"}},
				}
			}, nil).Once()

		reg, err := svc.Checkout(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, przelewy24.RegistrationAccepted, reg.Outcome)

		stored, err := payments.FindById(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentInProgress, stored.Status)
	})

	t.Run("unavailable gateway keeps payment new", func(t *testing.T) {
		gw := newMockGateway(t)
		svc, payments := newTestPaymentService(t, gw)
		_, p := seedCheckout(t, svc)

		gw.On("RegisterTransaction", mock.Anything, mock.Anything, mock.Anything).
			Return(przelewy24.Registration{Outcome: przelewy24.RegistrationUnavailable}, nil).Once()

		_, err := svc.Checkout(ctx, p.ID)
		require.ErrorIs(t, err, ErrGatewayUnavailable)

		stored, err := payments.FindById(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentNew, stored.Status)
	})

	t.Run("configuration error surfaces", func(t *testing.T) {
		gw := newMockGateway(t)
		svc, _ := newTestPaymentService(t, gw)
		_, p := seedCheckout(t, svc)

		gw.On("RegisterTransaction", mock.Anything, mock.Anything, mock.Anything).
			Return(przelewy24.Registration{}, &przelewy24.ConfigurationError{Reason: "no email"}).Once()

		_, err := svc.Checkout(ctx, p.ID)
		var cfgErr *przelewy24.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
	})

	t.Run("payment already checked out", func(t *testing.T) {
		gw := newMockGateway(t)
		svc, payments := newTestPaymentService(t, gw)
		_, p := seedCheckout(t, svc)
		require.NoError(t, payments.Modify(ctx, p.ID, func(p *domain.Payment) error {
			_, err := p.ChangeStatus(domain.PaymentInProgress)
			return err
		}))

		_, err := svc.Checkout(ctx, p.ID)
		require.ErrorIs(t, err, ErrPaymentNotNew)
		gw.AssertNotCalled(t, "RegisterTransaction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown payment", func(t *testing.T) {
		svc, _ := newTestPaymentService(t, newMockGateway(t))
		_, err := svc.Checkout(ctx, uuid.New())
		require.ErrorIs(t, err, repo.ErrNotFound)
	})
}

func TestOrderCustomerData(t *testing.T) {
	order := domain.Order{
		BuyerEmail:   "buyer@example.com",
		BuyerName:    "Jan Kowalski",
		BuyerCity:    "Warszawa",
		BuyerCountry: "PL",
		Language:     "pl",
	}
	data, err := OrderCustomerData().Query(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", data.Email)
	assert.Equal(t, "Jan Kowalski", data.Client)
	assert.Equal(t, "Warszawa", data.City)
	assert.Equal(t, "PL", data.Country)
	assert.Equal(t, "pl", data.Language)
}
