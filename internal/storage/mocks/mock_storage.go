package mocks

import (
	"context"
	"io"

	"fileingest/internal/model"
	"fileingest/internal/sanitize"
	"fileingest/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, dst sanitize.Path, r io.Reader) (*model.StoredFile, error) {
	args := m.Called(ctx, dst, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredFile), args.Error(1)
}

func (m *MockStorage) Stage(ctx context.Context, dst sanitize.Path, r io.Reader) (*storage.Staged, error) {
	args := m.Called(ctx, dst, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Staged), args.Error(1)
}

func (m *MockStorage) Open(ctx context.Context, p sanitize.Path) (io.ReadCloser, *model.StoredFile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.StoredFile), args.Error(2)
}

func (m *MockStorage) List(ctx context.Context) ([]model.StoredFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredFile), args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Root() sanitize.Path {
	args := m.Called()
	return args.Get(0).(sanitize.Path)
}
