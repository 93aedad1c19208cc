package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/repo"
)

var (
	ErrPaymentNotNew      = errors.New("payment is not awaiting checkout")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidAmount      = errors.New("payment amount must be positive")
)

type PaymentService interface {
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	CreatePayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, currency string) (*domain.Payment, error)
	// Checkout registers a NEW payment with the gateway and returns where the
	// browser goes next. ErrGatewayUnavailable leaves the payment NEW.
	Checkout(ctx context.Context, paymentID uuid.UUID) (przelewy24.Registration, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
}

type paymentService struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     przelewy24.PaymentGateway
	backend     string
	logger      *zap.Logger
}

func NewPaymentService(
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gateway przelewy24.PaymentGateway,
	backend string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		backend:     backend,
		logger:      logger.Named("payments"),
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if err := s.orderRepo.CreateOrder(ctx, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func (s *paymentService) CreatePayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, currency string) (*domain.Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.orderRepo.FindById(ctx, orderID); err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:         uuid.New(),
		OrderID:    orderID,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		Status:     domain.PaymentNew,
		AmountPaid: decimal.Zero,
		Backend:    s.backend,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return s.paymentRepo.FindById(ctx, paymentID)
}

func (s *paymentService) Checkout(ctx context.Context, paymentID uuid.UUID) (przelewy24.Registration, error) {
	var reg przelewy24.Registration

	err := s.paymentRepo.Modify(ctx, paymentID, func(p *domain.Payment) error {
		if p.Status != domain.PaymentNew {
			return fmt.Errorf("%w: status %s", ErrPaymentNotNew, p.Status)
		}

		order, err := s.orderRepo.FindById(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("find order %s: %w", p.OrderID, err)
		}

		reg, err = s.gateway.RegisterTransaction(ctx, p, *order)
		if err != nil {
			return err
		}
		if reg.Outcome == przelewy24.RegistrationUnavailable {
			return repo.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return przelewy24.Registration{}, err
	}

	if reg.Outcome == przelewy24.RegistrationUnavailable {
		return reg, ErrGatewayUnavailable
	}
	s.logger.Info("checkout registered",
		zap.String("payment_id", paymentID.String()),
		zap.Stringer("outcome", reg.Outcome),
	)
	return reg, nil
}

// OrderCustomerData reads the buyer details stored on the order itself.
func OrderCustomerData() przelewy24.CustomerDataProvider {
	return przelewy24.CustomerDataFunc(func(ctx context.Context, order domain.Order) (domain.CustomerData, error) {
		return order.CustomerData(), nil
	})
}
