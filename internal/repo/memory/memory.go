// Package memory keeps payments and orders in process memory. It backs the
// simulator and tests; production uses the Postgres repositories.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/repo"
)

var ErrDuplicate = errors.New("already exists")

type PaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]domain.Payment
	locks    map[uuid.UUID]*sync.Mutex
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{
		payments: make(map[uuid.UUID]domain.Payment),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *PaymentRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.ID]; ok {
		return ErrDuplicate
	}
	r.payments[payment.ID] = clonePayment(*payment)
	r.locks[payment.ID] = &sync.Mutex{}
	return nil
}

func (r *PaymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := clonePayment(p)
	return &out, nil
}

func (r *PaymentRepo) Modify(ctx context.Context, id uuid.UUID, fn func(payment *domain.Payment) error) error {
	r.mu.Lock()
	lock, ok := r.locks[id]
	r.mu.Unlock()
	if !ok {
		return repo.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	current, err := r.FindById(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(current); err != nil {
		if errors.Is(err, repo.ErrNoChange) {
			return nil
		}
		return err
	}
	current.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.payments[id] = clonePayment(*current)
	r.mu.Unlock()
	return nil
}

// All returns a snapshot of every stored payment.
func (r *PaymentRepo) All() []domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, clonePayment(p))
	}
	return out
}

func clonePayment(p domain.Payment) domain.Payment {
	if p.PaidOn != nil {
		t := *p.PaidOn
		p.PaidOn = &t
	}
	return p
}

type OrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]domain.Order
}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{orders: make(map[uuid.UUID]domain.Order)}
}

func (r *OrderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &o, nil
}

func (r *OrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return ErrDuplicate
	}
	r.orders[order.ID] = *order
	return nil
}
