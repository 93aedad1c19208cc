package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"go.uber.org/zap"

	"getpaid-p24/internal/config"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/worker"
)

var (
	ErrMalformed         = errors.New("malformed notification")
	ErrSignatureMismatch = errors.New("notification signature mismatch")
)

// Notification is the form Przelewy24 posts to the status URL.
type Notification struct {
	SessionID string
	OrderID   string
	Amount    string
	Currency  string
	Sign      string
}

var notificationFields = []string{"p24_session_id", "p24_order_id", "p24_amount", "p24_currency", "p24_sign"}

// NotificationFromForm fails with ErrMalformed when a mandatory field is absent.
func NotificationFromForm(form url.Values) (Notification, error) {
	var missing []string
	for _, f := range notificationFields {
		if _, ok := form[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Notification{}, fmt.Errorf("%w: missing %v", ErrMalformed, missing)
	}
	return Notification{
		SessionID: form.Get("p24_session_id"),
		OrderID:   form.Get("p24_order_id"),
		Amount:    form.Get("p24_amount"),
		Currency:  form.Get("p24_currency"),
		Sign:      form.Get("p24_sign"),
	}, nil
}

func (n Notification) values() map[string]string {
	return map[string]string{
		"p24_session_id": n.SessionID,
		"p24_order_id":   n.OrderID,
		"p24_amount":     n.Amount,
		"p24_currency":   n.Currency,
	}
}

type NotificationService struct {
	crc       string
	allowList []string
	executor  worker.Executor
	logger    *zap.Logger
}

func NewNotificationService(cfg config.Gateway, executor worker.Executor, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		crc:       cfg.CRC,
		allowList: cfg.AllowList(),
		executor:  executor,
		logger:    logger.Named("notifications"),
	}
}

// Allowed reports whether a notification may come from ip.
func (s *NotificationService) Allowed(ip string) bool {
	return slices.Contains(s.allowList, ip)
}

// OnStatusChange checks the notification and schedules its reconciliation.
// It does not wait for the job to run.
func (s *NotificationService) OnStatusChange(ctx context.Context, n Notification) (*worker.JobHandle, error) {
	log := s.logger.With(zap.String("session_id", n.SessionID), zap.String("order_id", n.OrderID))

	if !przelewy24.Verify(przelewy24.StatusSignFields, n.values(), s.crc, n.Sign) {
		log.Warn("notification signature mismatch")
		return nil, ErrSignatureMismatch
	}

	paymentID, err := przelewy24.ParseSessionPaymentID(n.SessionID)
	if err != nil {
		log.Warn("notification carries no payment id", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	handle, err := s.executor.Submit(ctx, worker.ReconcileJob{
		PaymentID: paymentID,
		SessionID: n.SessionID,
		Amount:    n.Amount,
		Currency:  n.Currency,
		OrderID:   n.OrderID,
	})
	if err != nil {
		log.Error("cannot schedule reconciliation", zap.Error(err))
		return nil, fmt.Errorf("submit reconcile job: %w", err)
	}

	log.Info("reconciliation scheduled",
		zap.String("payment_id", paymentID.String()),
		zap.String("job_id", handle.ID),
	)
	return handle, nil
}
