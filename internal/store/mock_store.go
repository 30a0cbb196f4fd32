package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateDocument(ctx context.Context, doc Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockStore) AttachJob(ctx context.Context, job AnalysisJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStore) MarkDocumentFailed(ctx context.Context, docID uuid.UUID) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockStore) GetJobByExternalID(ctx context.Context, externalJobID string) (AnalysisJob, error) {
	args := m.Called(ctx, externalJobID)
	return args.Get(0).(AnalysisJob), args.Error(1)
}

func (m *MockStore) CompleteJob(ctx context.Context, externalJobID string, status JobStatus, errMsg string, rawResult []byte, completedAt time.Time) error {
	args := m.Called(ctx, externalJobID, status, errMsg, rawResult, completedAt)
	return args.Error(0)
}

func (m *MockStore) ReplaceChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) error {
	args := m.Called(ctx, docID, chunks)
	return args.Error(0)
}

func (m *MockStore) ReplaceEntities(ctx context.Context, docID uuid.UUID, entities []Entity) error {
	args := m.Called(ctx, docID, entities)
	return args.Error(0)
}

func (m *MockStore) ReplaceTables(ctx context.Context, docID uuid.UUID, tables []Table) error {
	args := m.Called(ctx, docID, tables)
	return args.Error(0)
}

func (m *MockStore) FinalizeDocument(ctx context.Context, docID uuid.UUID, results DocumentResults) error {
	args := m.Called(ctx, docID, results)
	return args.Error(0)
}

func (m *MockStore) FindOwnedDocument(ctx context.Context, userID uuid.UUID, keySuffix string) (Document, error) {
	args := m.Called(ctx, userID, keySuffix)
	return args.Get(0).(Document), args.Error(1)
}
