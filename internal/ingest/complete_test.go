package ingest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"claims-ingest/internal/blocks"
	"claims-ingest/internal/objectstore"
	"claims-ingest/internal/ocr"
	"claims-ingest/internal/router"
	"claims-ingest/internal/store"
)

func notificationEvent(message string) router.Event {
	return router.Event{
		Kind:         router.KindNotification,
		Notification: &router.Notification{Message: message},
	}
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    notification
		wantErr bool
	}{
		{
			name: "valid json",
			raw:  `{"JobId":"j-123","Status":"SUCCEEDED","StatusMessage":"done"}`,
			want: notification{JobID: "j-123", Status: "SUCCEEDED", StatusMessage: "done"},
		},
		{
			name: "malformed payload falls back to regex",
			raw:  "JobId: abc123, Status: FAILED",
			want: notification{JobID: "abc123", Status: "FAILED"},
		},
		{
			name:    "no recoverable tokens",
			raw:     "something went wrong",
			wantErr: true,
		},
		{
			name:    "job id without status",
			raw:     "JobId: abc123 but nothing else",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNotification(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseNotification() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHandleNotificationFailedStatus(t *testing.T) {
	st := &store.MockStore{}
	st.On("CompleteJob", mock.Anything, "abc123", store.JobFailed, "document analysis failed",
		mock.Anything, mock.Anything).Return(nil).Once()
	p := newTestPipeline(st, &ocr.MockAnalyzer{}, &objectstore.MockObjectStore{})

	// Regex-recovered FAILED notification drives the failure branch.
	resp, err := p.HandleNotification(context.Background(), notificationEvent("JobId: abc123, Status: FAILED"), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	st.AssertExpectations(t)
}

// rawFixture stands in for the analysis service's wire payload. It
// carries a field the block model does not (query text); storing it
// unmodified is what keeps the job record replayable.
const rawFixture = `[{"BlockType":"QUERY","Id":"q1","Query":{"Text":"What is the patient name?"}}]`

// succeededFixture builds a result with two page-1 LINE blocks holding
// ~1500 chars of sentence text, one key/value pair, one lab-result
// table, and one signature.
func succeededFixture() ocr.Result {
	sentence := "The veteran reported persistent ringing in both ears following exposure to artillery fire during active duty service. "
	half := strings.Repeat(sentence, 7) // ~820 chars per line block
	c95, c97, c98, c90, c88 := 95.0, 97.0, 98.0, 90.0, 88.0
	return ocr.Result{
		Status: ocr.JobSucceeded,
		Raw:    []byte(rawFixture),
		Blocks: []blocks.Block{
			{ID: "l1", BlockType: blocks.TypeLine, Text: strings.TrimSpace(half), Page: 1, Confidence: &c95},
			{ID: "l2", BlockType: blocks.TypeLine, Text: strings.TrimSpace(half), Page: 1, Confidence: &c97},
			{ID: "k1", BlockType: blocks.TypeKeyValueSet, EntityTypes: []string{blocks.EntityKey},
				Text: "Date of Service", Page: 1, Confidence: &c90,
				Relationships: []blocks.Relationship{{Type: blocks.RelValue, IDs: []string{"v1"}}}},
			{ID: "v1", BlockType: blocks.TypeKeyValueSet, EntityTypes: []string{blocks.EntityValue},
				Text: "2023-01-15", Page: 1},
			{ID: "t1", BlockType: blocks.TypeTable, Page: 1, Confidence: &c88},
			{ID: "c11", BlockType: blocks.TypeCell, RowIndex: 1, ColumnIndex: 1, Text: "Test", Page: 1,
				Relationships: []blocks.Relationship{{Type: blocks.RelChild, IDs: []string{"t1"}}}},
			{ID: "c12", BlockType: blocks.TypeCell, RowIndex: 1, ColumnIndex: 2, Text: "Result", Page: 1,
				Relationships: []blocks.Relationship{{Type: blocks.RelChild, IDs: []string{"t1"}}}},
			{ID: "c21", BlockType: blocks.TypeCell, RowIndex: 2, ColumnIndex: 1, Text: "Hemoglobin", Page: 1,
				Relationships: []blocks.Relationship{{Type: blocks.RelChild, IDs: []string{"t1"}}}},
			{ID: "c22", BlockType: blocks.TypeCell, RowIndex: 2, ColumnIndex: 2, Text: "13.5", Page: 1,
				Relationships: []blocks.Relationship{{Type: blocks.RelChild, IDs: []string{"t1"}}}},
			{ID: "s1", BlockType: blocks.TypeSignature, Page: 1, Confidence: &c98},
		},
	}
}

func TestHandleNotificationSucceeded(t *testing.T) {
	docID := uuid.New()
	jobID := "job-ok"

	st := &store.MockStore{}
	an := &ocr.MockAnalyzer{}
	an.On("GetAnalysisResult", mock.Anything, jobID).Return(succeededFixture(), nil).Once()
	st.On("GetJobByExternalID", mock.Anything, jobID).
		Return(store.AnalysisJob{ID: uuid.New(), DocumentID: docID, ExternalJobID: jobID, Status: store.JobProcessing}, nil).Once()
	st.On("ReplaceChunks", mock.Anything, docID, mock.MatchedBy(func(chunks []store.Chunk) bool {
		if len(chunks) < 2 {
			return false
		}
		for _, c := range chunks {
			if c.Page != 1 || c.Confidence <= 0 || c.Confidence > 1 {
				return false
			}
		}
		return true
	})).Return(nil).Once()
	st.On("ReplaceEntities", mock.Anything, docID, mock.MatchedBy(func(ents []store.Entity) bool {
		return len(ents) == 1 && ents[0].Type == "service_date" && ents[0].Value == "2023-01-15"
	})).Return(nil).Once()
	st.On("ReplaceTables", mock.Anything, docID, mock.MatchedBy(func(ts []store.Table) bool {
		return len(ts) == 1 && ts[0].Page == 1 &&
			len(ts[0].Headers) == 2 && ts[0].Headers[0] == "Test" &&
			len(ts[0].Rows) == 1 && ts[0].Rows[0][0] == "Hemoglobin" && ts[0].Rows[0][1] == "13.5" &&
			ts[0].Confidence > 0 && ts[0].Confidence <= 1
	})).Return(nil).Once()
	st.On("FinalizeDocument", mock.Anything, docID, mock.MatchedBy(func(r store.DocumentResults) bool {
		return r.HasSignatures &&
			r.SignatureCount == 1 &&
			r.TotalPages == 1 &&
			r.ChunkCount >= 2 &&
			r.ConfidenceScore > 0 &&
			r.FormFields["Date of Service"] == "2023-01-15"
	})).Return(nil).Once()
	// The stored raw result must be the service payload byte for byte.
	st.On("CompleteJob", mock.Anything, jobID, store.JobSucceeded, "",
		mock.MatchedBy(func(raw []byte) bool { return string(raw) == rawFixture }), mock.Anything).Return(nil).Once()

	p := newTestPipeline(st, an, &objectstore.MockObjectStore{})
	resp, err := p.HandleNotification(context.Background(),
		notificationEvent(`{"JobId":"`+jobID+`","Status":"SUCCEEDED"}`), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	st.AssertExpectations(t)
	an.AssertExpectations(t)
}

func TestHandleNotificationSucceededTwiceIsIdempotent(t *testing.T) {
	// At-least-once delivery can replay a SUCCEEDED notification. Both
	// deliveries must derive identical chunks, entities, and document
	// results.
	docID := uuid.New()
	jobID := "job-dup"

	var firstChunks, secondChunks []store.Chunk
	var firstResults, secondResults store.DocumentResults

	st := &store.MockStore{}
	an := &ocr.MockAnalyzer{}
	an.On("GetAnalysisResult", mock.Anything, jobID).Return(succeededFixture(), nil).Twice()
	st.On("GetJobByExternalID", mock.Anything, jobID).
		Return(store.AnalysisJob{DocumentID: docID, ExternalJobID: jobID}, nil).Twice()
	st.On("ReplaceChunks", mock.Anything, docID, mock.Anything).Run(func(args mock.Arguments) {
		chunks := args.Get(2).([]store.Chunk)
		if firstChunks == nil {
			firstChunks = chunks
		} else {
			secondChunks = chunks
		}
	}).Return(nil).Twice()
	st.On("ReplaceEntities", mock.Anything, docID, mock.Anything).Return(nil).Twice()
	st.On("ReplaceTables", mock.Anything, docID, mock.Anything).Return(nil).Twice()
	st.On("FinalizeDocument", mock.Anything, docID, mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(2).(store.DocumentResults)
		if firstResults.ProcessedAt.IsZero() {
			firstResults = r
		} else {
			secondResults = r
		}
	}).Return(nil).Twice()
	st.On("CompleteJob", mock.Anything, jobID, store.JobSucceeded, "", mock.Anything, mock.Anything).
		Return(nil).Twice()

	p := newTestPipeline(st, an, &objectstore.MockObjectStore{})
	msg := `{"JobId":"` + jobID + `","Status":"SUCCEEDED"}`
	for i := 0; i < 2; i++ {
		if _, err := p.HandleNotification(context.Background(), notificationEvent(msg), "req-1"); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	if len(firstChunks) == 0 || len(firstChunks) != len(secondChunks) {
		t.Fatalf("chunk counts differ: %d vs %d", len(firstChunks), len(secondChunks))
	}
	for i := range firstChunks {
		if firstChunks[i] != secondChunks[i] {
			t.Errorf("chunk %d differs between deliveries", i)
		}
	}
	// Timestamps aside, the derived document state must be identical.
	firstResults.ProcessedAt = secondResults.ProcessedAt
	if firstResults.ConfidenceScore != secondResults.ConfidenceScore ||
		firstResults.ChunkCount != secondResults.ChunkCount ||
		firstResults.TotalPages != secondResults.TotalPages ||
		firstResults.SignatureCount != secondResults.SignatureCount {
		t.Errorf("document results differ: %+v vs %+v", firstResults, secondResults)
	}
	st.AssertExpectations(t)
}

func TestHandleNotificationJobNotFound(t *testing.T) {
	st := &store.MockStore{}
	an := &ocr.MockAnalyzer{}
	an.On("GetAnalysisResult", mock.Anything, "ghost").Return(succeededFixture(), nil).Once()
	st.On("GetJobByExternalID", mock.Anything, "ghost").
		Return(store.AnalysisJob{}, store.ErrJobNotFound).Once()

	p := newTestPipeline(st, an, &objectstore.MockObjectStore{})
	resp, err := p.HandleNotification(context.Background(),
		notificationEvent(`{"JobId":"ghost","Status":"SUCCEEDED"}`), "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	// No derived rows, no finalization.
	st.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "ReplaceTables", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "FinalizeDocument", mock.Anything, mock.Anything, mock.Anything)
	st.AssertExpectations(t)
}

func TestHandleNotificationExtractionFailureMarksJobFailed(t *testing.T) {
	st := &store.MockStore{}
	an := &ocr.MockAnalyzer{}
	an.On("GetAnalysisResult", mock.Anything, "j-err").
		Return(ocr.Result{}, errors.New("service unavailable")).Once()
	st.On("CompleteJob", mock.Anything, "j-err", store.JobFailed,
		mock.MatchedBy(func(msg string) bool { return strings.Contains(msg, "service unavailable") }),
		mock.Anything, mock.Anything).Return(nil).Once()

	p := newTestPipeline(st, an, &objectstore.MockObjectStore{})
	resp, err := p.HandleNotification(context.Background(),
		notificationEvent(`{"JobId":"j-err","Status":"SUCCEEDED"}`), "req-1")
	// The notification is acknowledged even though processing failed.
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	st.AssertExpectations(t)
}

func TestHandleNotificationUnexpectedStatus(t *testing.T) {
	p := newTestPipeline(&store.MockStore{}, &ocr.MockAnalyzer{}, &objectstore.MockObjectStore{})
	_, err := p.HandleNotification(context.Background(),
		notificationEvent(`{"JobId":"j1","Status":"IN_PROGRESS"}`), "req-1")
	if err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}
