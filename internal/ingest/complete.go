package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"claims-ingest/internal/blocks"
	"claims-ingest/internal/chunker"
	"claims-ingest/internal/logger"
	"claims-ingest/internal/router"
	"claims-ingest/internal/store"
)

type notification struct {
	JobID         string `json:"JobId"`
	Status        string `json:"Status"`
	StatusMessage string `json:"StatusMessage"`
}

// Best-effort token extraction for notification payloads that are not
// valid JSON.
var (
	jobIDRe  = regexp.MustCompile(`JobId"?\s*[:=]\s*"?([A-Za-z0-9][A-Za-z0-9_-]*)`)
	statusRe = regexp.MustCompile(`Status"?\s*[:=]\s*"?(SUCCEEDED|FAILED)`)
)

func parseNotification(raw string) (notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(raw), &n); err == nil && n.JobID != "" && n.Status != "" {
		return n, nil
	}
	jobMatch := jobIDRe.FindStringSubmatch(raw)
	statusMatch := statusRe.FindStringSubmatch(raw)
	if jobMatch == nil || statusMatch == nil {
		return notification{}, fmt.Errorf("unparseable completion notification: %q", raw)
	}
	return notification{JobID: jobMatch[1], Status: statusMatch[1]}, nil
}

// HandleNotification drives the terminal transition of an analysis job.
// Failures inside the SUCCEEDED path are downgraded to a FAILED job
// update and acknowledged; the notification transport never sees them.
func (p *Pipeline) HandleNotification(ctx context.Context, evt router.Event, requestID string) (router.Response, error) {
	log := logger.WithRequestID(p.log, requestID)

	n, err := parseNotification(evt.Notification.Message)
	if err != nil {
		return router.Response{}, err
	}
	log = log.With("job_id", n.JobID)

	switch n.Status {
	case string(store.JobFailed):
		msg := n.StatusMessage
		if msg == "" {
			msg = "document analysis failed"
		}
		if err := p.store.CompleteJob(ctx, n.JobID, store.JobFailed, msg, nil, time.Now()); err != nil {
			return router.Response{}, fmt.Errorf("record failed job: %w", err)
		}
		log.Info("analysis job recorded as failed", "message", msg)
		return router.OK(requestID, map[string]any{"jobId": n.JobID, "status": n.Status}), nil

	case string(store.JobSucceeded):
		if err := p.processSucceeded(ctx, log, n.JobID); err != nil {
			log.Error("completion processing failed", "err", err)
			if upErr := p.store.CompleteJob(ctx, n.JobID, store.JobFailed, err.Error(), nil, time.Now()); upErr != nil {
				log.Error("failed to record job failure", "err", upErr)
			}
		}
		return router.OK(requestID, map[string]any{"jobId": n.JobID, "status": n.Status}), nil

	default:
		return router.Response{}, fmt.Errorf("unexpected job status %q", n.Status)
	}
}

// processSucceeded fetches the block graph, derives chunks, entities,
// and document aggregates, and persists everything. Re-running it for
// the same job rewrites identical state.
func (p *Pipeline) processSucceeded(ctx context.Context, log *slog.Logger, externalJobID string) error {
	result, err := p.analyzer.GetAnalysisResult(ctx, externalJobID)
	if err != nil {
		return fmt.Errorf("fetch analysis result: %w", err)
	}

	job, err := p.store.GetJobByExternalID(ctx, externalJobID)
	if errors.Is(err, store.ErrJobNotFound) {
		log.Warn("no analysis job on record for notification")
		return nil
	}
	if err != nil {
		return err
	}

	bs := result.Blocks
	aggregate := blocks.AggregateConfidence(bs)
	fields := blocks.FormFields(bs)
	signatures := blocks.Signatures(bs)

	chunks := chunkPages(blocks.PageText(bs), aggregate)
	entities := convertEntities(blocks.Entities(bs))
	tables := convertTables(blocks.Tables(bs))

	if len(chunks) > 0 {
		if err := p.store.ReplaceChunks(ctx, job.DocumentID, chunks); err != nil {
			return fmt.Errorf("persist chunks: %w", err)
		}
	}
	if len(entities) > 0 {
		if err := p.store.ReplaceEntities(ctx, job.DocumentID, entities); err != nil {
			return fmt.Errorf("persist entities: %w", err)
		}
	}
	if len(tables) > 0 {
		if err := p.store.ReplaceTables(ctx, job.DocumentID, tables); err != nil {
			return fmt.Errorf("persist tables: %w", err)
		}
	}

	// The job keeps the service's payload untouched; the converted block
	// model drops fields (query text, selection status) that audit and
	// replay need.
	rawResult := []byte(result.Raw)
	if len(rawResult) == 0 {
		rawResult, err = json.Marshal(bs)
		if err != nil {
			return fmt.Errorf("marshal raw result: %w", err)
		}
	}

	now := time.Now()
	results := store.DocumentResults{
		ConfidenceScore: aggregate,
		TotalPages:      blocks.MaxPage(bs),
		ChunkCount:      len(chunks),
		FormFields:      fields,
		HasSignatures:   len(signatures) > 0,
		SignatureCount:  len(signatures),
		ProcessedAt:     now,
	}

	// Document and job finalization run concurrently; one failing does
	// not roll back the other.
	var g errgroup.Group
	g.Go(func() error {
		return p.store.FinalizeDocument(ctx, job.DocumentID, results)
	})
	g.Go(func() error {
		return p.store.CompleteJob(ctx, externalJobID, store.JobSucceeded, "", rawResult, now)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	log.Info("analysis complete",
		"document_id", job.DocumentID,
		"chunks", len(chunks),
		"entities", len(entities),
		"tables", len(tables),
		"pages", results.TotalPages,
		"confidence", aggregate,
	)
	return nil
}

// chunkPages runs the chunking engine per page, ascending. Chunk indexes
// restart at 0 on every page.
func chunkPages(pages map[int]string, aggregate float64) []store.Chunk {
	nums := make([]int, 0, len(pages))
	for page := range pages {
		nums = append(nums, page)
	}
	sort.Ints(nums)

	var out []store.Chunk
	for _, page := range nums {
		for _, c := range chunker.ChunkPage(pages[page], page) {
			out = append(out, store.Chunk{
				Index:      c.Index,
				Page:       c.Page,
				Content:    c.Content,
				WordCount:  c.WordCount,
				CharCount:  c.CharCount,
				Confidence: aggregate / 100,
			})
		}
	}
	return out
}

func convertTables(ts []blocks.Table) []store.Table {
	out := make([]store.Table, 0, len(ts))
	for _, t := range ts {
		out = append(out, store.Table{
			Page:       t.Page,
			Headers:    t.Headers,
			Rows:       t.Rows,
			Confidence: t.Confidence / 100,
		})
	}
	return out
}

func convertEntities(ents []blocks.Entity) []store.Entity {
	out := make([]store.Entity, 0, len(ents))
	for _, e := range ents {
		se := store.Entity{
			Type:       e.Type,
			Value:      e.Value,
			Confidence: e.Confidence / 100,
			Page:       e.Page,
		}
		if e.BoundingBox != nil {
			se.BoundingBox = &store.BoundingBox{
				Width:  e.BoundingBox.Width,
				Height: e.BoundingBox.Height,
				Left:   e.BoundingBox.Left,
				Top:    e.BoundingBox.Top,
			}
		}
		out = append(out, se)
	}
	return out
}
