package mocks

import (
	"context"

	"imgbed/internal/cache"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Match(ctx context.Context, key string) (*cache.Entry, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*cache.Entry), args.Bool(1), args.Error(2)
}

func (m *MockCache) Put(ctx context.Context, key string, e *cache.Entry) error {
	args := m.Called(ctx, key, e)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
