package mocks

import (
	"context"
	"time"

	"imgbed/internal/model"
	"imgbed/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockUploadRepository struct {
	mock.Mock
}

func (m *MockUploadRepository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	args := m.Called(ctx, ip, since)
	return args.Int(0), args.Error(1)
}

func (m *MockUploadRepository) FindByHash(ctx context.Context, hash string) (*model.UploadRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadRecord), args.Error(1)
}

func (m *MockUploadRepository) FindByIdentifier(ctx context.Context, identifier string) (*model.UploadRecord, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadRecord), args.Error(1)
}

func (m *MockUploadRepository) CreateWithinQuota(ctx context.Context, rec *model.UploadRecord, q repository.Quota) (*model.UploadRecord, bool, error) {
	args := m.Called(ctx, rec, q)
	if f, ok := args.Get(0).(func(context.Context, *model.UploadRecord, repository.Quota) *model.UploadRecord); ok {
		return f(ctx, rec, q), args.Bool(1), args.Error(2)
	}
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.UploadRecord), args.Bool(1), args.Error(2)
}

func (m *MockUploadRepository) Delete(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

func (m *MockUploadRepository) List(ctx context.Context, f repository.Filter, pq repository.PageQuery) (*repository.PageResult[model.UploadRecord], error) {
	args := m.Called(ctx, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.UploadRecord]), args.Error(1)
}
