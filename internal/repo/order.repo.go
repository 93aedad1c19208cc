package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"getpaid-p24/internal/domain"
)

type OrderRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, description, buyer_email, buyer_name, buyer_address,
		       buyer_zip, buyer_city, buyer_country, language, created_at
		FROM orders WHERE id = $1`, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Description,
		&order.BuyerEmail,
		&order.BuyerName,
		&order.BuyerAddress,
		&order.BuyerZip,
		&order.BuyerCity,
		&order.BuyerCountry,
		&order.Language,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, description, buyer_email, buyer_name, buyer_address,
		                    buyer_zip, buyer_city, buyer_country, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.UserID, order.Description, order.BuyerEmail, order.BuyerName, order.BuyerAddress,
		order.BuyerZip, order.BuyerCity, order.BuyerCountry, order.Language, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}
