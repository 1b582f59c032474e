package mocks

import (
	"context"
	"time"

	"imgbed/internal/model"
	"imgbed/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockImageService struct {
	mock.Mock
}

func (m *MockImageService) Upload(ctx context.Context, files []model.FileInput, clientIP string, now time.Time) ([]model.UploadResult, error) {
	args := m.Called(ctx, files, clientIP, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadResult), args.Error(1)
}

func (m *MockImageService) Fetch(ctx context.Context, path string) (*model.ObjectResponse, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ObjectResponse), args.Error(1)
}

func (m *MockImageService) Delete(ctx context.Context, identifier string) error {
	args := m.Called(ctx, identifier)
	return args.Error(0)
}

func (m *MockImageService) List(ctx context.Context, query string, limit, offset int) (*service.UploadListResult, error) {
	args := m.Called(ctx, query, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadListResult), args.Error(1)
}
