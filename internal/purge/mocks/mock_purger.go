package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) Purge(ctx context.Context, urls []string) error {
	args := m.Called(ctx, urls)
	return args.Error(0)
}
