package ocr

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockAnalyzer is a mock implementation of Analyzer using testify/mock.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) StartAnalysis(ctx context.Context, bucket, key string) (string, error) {
	args := m.Called(ctx, bucket, key)
	return args.String(0), args.Error(1)
}

func (m *MockAnalyzer) GetAnalysisResult(ctx context.Context, jobID string) (Result, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(Result), args.Error(1)
}
