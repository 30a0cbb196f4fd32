package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue using testify/mock.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Publish(ctx context.Context, d Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockQueue) Worker(ctx context.Context, handler Handler) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}
