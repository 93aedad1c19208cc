package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"getpaid-p24/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNoChange may be returned from a Modify callback to leave the row untouched.
	ErrNoChange = errors.New("no change")
)

type PaymentRepo interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	// Modify loads the payment under a write lock held until fn returns and
	// persists it unless fn fails. Only one Modify per payment runs at a time.
	Modify(ctx context.Context, id uuid.UUID, fn func(payment *domain.Payment) error) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, order_id, amount, currency, status, amount_paid, paid_on, external_id, backend, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p      domain.Payment
		paidOn sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.AmountPaid,
		&paidOn,
		&p.ExternalID,
		&p.Backend,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paidOn.Valid {
		t := paidOn.Time.UTC()
		p.PaidOn = &t
	}
	return &p, nil
}

func (r *paymentRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(
		ctx, query,
		payment.ID, payment.OrderID, payment.Amount, payment.Currency, payment.Status,
		payment.AmountPaid, payment.PaidOn, payment.ExternalID, payment.Backend,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", payment.ID, err)
	}
	return nil
}

func (r *paymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *paymentRepo) Modify(ctx context.Context, id uuid.UUID, fn func(payment *domain.Payment) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	payment, err := scanPayment(row)
	if err != nil {
		return err
	}

	if err := fn(payment); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}

	if err := r.updatePayment(ctx, tx, payment); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *paymentRepo) updatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $2,
		    amount_paid = $3,
		    paid_on = $4,
		    external_id = $5,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := tx.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.Status,
		payment.AmountPaid,
		payment.PaidOn,
		payment.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}
	return nil
}
