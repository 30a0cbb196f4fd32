package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status values for the document's upload/processing/analysis fields.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// JobStatus mirrors the analysis service's job vocabulary.
type JobStatus string

const (
	JobProcessing JobStatus = "PROCESSING"
	JobSucceeded  JobStatus = "SUCCEEDED"
	JobFailed     JobStatus = "FAILED"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrJobNotFound      = errors.New("analysis job not found")
)

// Document is one uploaded file and everything derived from it.
type Document struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	FileName         string
	FileURL          string
	UploadStatus     Status
	ProcessingStatus Status
	AnalysisStatus   Status
	AnalysisJobID    string
	ConfidenceScore  float64
	TotalPages       int
	ChunkCount       int
	FormFields       map[string]string
	HasSignatures    bool
	SignatureCount   int
	UploadedAt       time.Time
	ProcessedAt      *time.Time
	UpdatedAt        time.Time
}

// AnalysisJob is one asynchronous analysis run against a document.
// The raw result payload is retained for audit and replay.
type AnalysisJob struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	ExternalJobID string
	Status        JobStatus
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   *time.Time
	RawResult     []byte
}

// Chunk is a retrieval-sized slice of extracted page text.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Page       int
	Content    string
	WordCount  int
	CharCount  int
	Confidence float64
}

// BoundingBox locates an entity on its page, in page-fraction units.
type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Entity is a normalized form field extracted from a document.
type Entity struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Type        string
	Value       string
	Confidence  float64
	Page        int
	BoundingBox *BoundingBox
}

// Table is a reconstructed grid from an analysis result. Row 1 of the
// source grid becomes Headers; the rest become Rows.
type Table struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Page       int
	Headers    []string
	Rows       [][]string
	Confidence float64
}

// DocumentResults carries everything the completion handler derives
// from a finished analysis. FinalizeDocument applies it as absolute
// values, so re-applying the same results is a no-op state-wise.
type DocumentResults struct {
	ConfidenceScore float64
	TotalPages      int
	ChunkCount      int
	FormFields      map[string]string
	HasSignatures   bool
	SignatureCount  int
	ProcessedAt     time.Time
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	CreateDocument(ctx context.Context, doc Document) error
	AttachJob(ctx context.Context, job AnalysisJob) error
	MarkDocumentFailed(ctx context.Context, docID uuid.UUID) error
	GetJobByExternalID(ctx context.Context, externalJobID string) (AnalysisJob, error)
	CompleteJob(ctx context.Context, externalJobID string, status JobStatus, errMsg string, rawResult []byte, completedAt time.Time) error
	ReplaceChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) error
	ReplaceEntities(ctx context.Context, docID uuid.UUID, entities []Entity) error
	ReplaceTables(ctx context.Context, docID uuid.UUID, tables []Table) error
	FinalizeDocument(ctx context.Context, docID uuid.UUID, results DocumentResults) error
	FindOwnedDocument(ctx context.Context, userID uuid.UUID, keySuffix string) (Document, error)
}
