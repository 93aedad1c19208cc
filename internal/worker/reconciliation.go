package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/repo"
	"getpaid-p24/internal/repo/processed"
)

// PaymentReconciler asks the gateway for the authoritative status of a
// notified payment and applies it to the ledger. The notification signature
// has already been checked by the time a job gets here.
type PaymentReconciler struct {
	payments     repo.PaymentRepo
	gateway      przelewy24.PaymentGateway
	processed    processed.Store
	processedTTL time.Duration
	logger       *zap.Logger
}

func NewPaymentReconciler(
	payments repo.PaymentRepo,
	gateway przelewy24.PaymentGateway,
	processed processed.Store,
	processedTTL time.Duration,
	logger *zap.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{
		payments:     payments,
		gateway:      gateway,
		processed:    processed,
		processedTTL: processedTTL,
		logger:       logger.Named("reconciler"),
	}
}

func (r *PaymentReconciler) Reconcile(ctx context.Context, job ReconcileJob) error {
	log := r.logger.With(
		zap.String("payment_id", job.PaymentID.String()),
		zap.String("session_id", job.SessionID),
		zap.String("order_id", job.OrderID),
	)

	if r.processed != nil {
		done, err := r.processed.IsProcessed(ctx, job.Key())
		if err != nil {
			log.Warn("processed store unavailable, reconciling anyway", zap.Error(err))
		} else if done {
			log.Debug("notification already reconciled")
			return nil
		}
	}

	outcome := przelewy24.StatusUnavailable
	var status domain.PaymentStatus
	err := r.payments.Modify(ctx, job.PaymentID, func(p *domain.Payment) error {
		if p.Status.Terminal() {
			log.Info("payment already settled", zap.String("status", string(p.Status)))
			return repo.ErrNoChange
		}
		outcome = r.gateway.QueryStatus(ctx, p, przelewy24.StatusQuery{
			SessionID: job.SessionID,
			OrderID:   job.OrderID,
			Amount:    job.Amount,
			Currency:  job.Currency,
		})
		status = p.Status
		if outcome == przelewy24.StatusUnavailable {
			return repo.ErrNoChange
		}
		return nil
	})
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("payment no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile payment %s: %w", job.PaymentID, err)
	}

	if outcome == przelewy24.StatusUnavailable {
		return nil
	}
	if outcome == przelewy24.StatusRejected && status != domain.PaymentFailed {
		log.Warn("gateway rejected payment, transition refused",
			zap.String("status", string(status)),
			zap.String("refused", string(status)+" -> "+string(domain.PaymentFailed)),
		)
	} else {
		log.Info("payment reconciled", zap.Stringer("outcome", outcome), zap.String("status", string(status)))
	}

	if r.processed != nil {
		if err := r.processed.MarkProcessed(ctx, job.Key(), r.processedTTL); err != nil {
			log.Warn("cannot mark notification processed", zap.Error(err))
		}
	}
	return nil
}
