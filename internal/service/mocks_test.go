package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"getpaid-p24/internal/domain"
	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/worker"
)

type mockExecutor struct {
	mock.Mock
}

func newMockExecutor(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockExecutor {
	m := &mockExecutor{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockExecutor) Submit(ctx context.Context, job worker.ReconcileJob) (*worker.JobHandle, error) {
	args := m.Called(ctx, job)
	h, _ := args.Get(0).(*worker.JobHandle)
	return h, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func newMockGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *mockGateway {
	m := &mockGateway{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockGateway) RegisterTransaction(ctx context.Context, payment *domain.Payment, order domain.Order) (przelewy24.Registration, error) {
	args := m.Called(ctx, payment, order)
	if fn, ok := args.Get(0).(func(*domain.Payment) przelewy24.Registration); ok {
		return fn(payment), args.Error(1)
	}
	return args.Get(0).(przelewy24.Registration), args.Error(1)
}

func (m *mockGateway) QueryStatus(ctx context.Context, payment *domain.Payment, q przelewy24.StatusQuery) przelewy24.StatusOutcome {
	args := m.Called(ctx, payment, q)
	return args.Get(0).(przelewy24.StatusOutcome)
}
