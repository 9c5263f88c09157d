package mocks

import (
	"context"

	"docstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockLineRepository struct {
	mock.Mock
}

func (m *MockLineRepository) BulkReplace(ctx context.Context, documentID string, lines []model.Line) error {
	args := m.Called(ctx, documentID, lines)
	return args.Error(0)
}

func (m *MockLineRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Line, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Line), args.Error(1)
}

func (m *MockLineRepository) DeleteAll(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockLineRepository) UpdateContent(ctx context.Context, documentID, blockID, content string) error {
	args := m.Called(ctx, documentID, blockID, content)
	return args.Error(0)
}
