package mocks

import (
	"context"
	"io"

	"fileingest/internal/model"
	"fileingest/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Upload(ctx context.Context, req model.UploadRequest) (*model.StoredFile, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context) (*service.FileListResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileListResult), args.Error(1)
}

func (m *MockFileService) Open(ctx context.Context, name string) (io.ReadCloser, *model.StoredFile, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.StoredFile), args.Error(2)
}

func (m *MockFileService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
