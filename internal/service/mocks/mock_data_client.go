package mocks

import (
	"context"
	"time"

	"docstore/internal/model"
	"docstore/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDataClient struct {
	mock.Mock
}

func (m *MockDataClient) Upload(ctx context.Context, name string, content []byte, meta service.UploadMeta) (*model.Document, error) {
	args := m.Called(ctx, name, content, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDataClient) Get(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDataClient) GetFile(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDataClient) List(ctx context.Context, limit, offset int, state model.DocumentState) (*service.DocumentListResult, error) {
	args := m.Called(ctx, limit, offset, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDataClient) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataClient) SaveLines(ctx context.Context, id string, lines []model.Line) error {
	args := m.Called(ctx, id, lines)
	return args.Error(0)
}

func (m *MockDataClient) ListLines(ctx context.Context, id string) ([]model.Line, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Line), args.Error(1)
}

func (m *MockDataClient) UpdateLine(ctx context.Context, id, blockID, content string) error {
	args := m.Called(ctx, id, blockID, content)
	return args.Error(0)
}

func (m *MockDataClient) GenerateDownloadURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, id, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockDataClient) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDataClient) Check(ctx context.Context) service.Health {
	args := m.Called(ctx)
	return args.Get(0).(service.Health)
}

func (m *MockDataClient) SweepPending(ctx context.Context, grace time.Duration) (service.SweepResult, error) {
	args := m.Called(ctx, grace)
	return args.Get(0).(service.SweepResult), args.Error(1)
}
