package ocr

import (
	"context"
	"encoding/json"

	"claims-ingest/internal/blocks"
)

// Job statuses reported by the analysis service.
const (
	JobSucceeded  = "SUCCEEDED"
	JobFailed     = "FAILED"
	JobInProgress = "IN_PROGRESS"
)

// Result is one completed analysis: terminal status plus the full block
// graph. Raw holds the service's block list as returned, before any
// conversion into the narrower block model; it is what gets stored for
// audit and replay, so fields the model does not carry (query text,
// selection status) survive.
type Result struct {
	Status        string
	StatusMessage string
	Blocks        []blocks.Block
	Raw           json.RawMessage
}

// Analyzer starts asynchronous document-analysis jobs and fetches their
// results. The service notifies a pub/sub topic when a job finishes.
type Analyzer interface {
	StartAnalysis(ctx context.Context, bucket, key string) (jobID string, err error)
	GetAnalysisResult(ctx context.Context, jobID string) (Result, error)
}
