package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"claims-ingest/internal/logger"
	"claims-ingest/internal/router"
	"claims-ingest/internal/store"
)

// FallbackUserID owns objects uploaded without a user prefix (bare
// filename keys, used by test uploads).
const FallbackUserID = "00000000-0000-4000-8000-000000000000"

// RFC 4122, versions 1-5.
var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// HandleObjectCreated validates the uploaded object, records the
// document, and starts the asynchronous analysis job.
func (p *Pipeline) HandleObjectCreated(ctx context.Context, evt router.Event, requestID string) (router.Response, error) {
	oc := evt.ObjectCreated
	log := logger.WithRequestID(p.log, requestID)

	if oc.Bucket != p.bucket {
		log.Warn("upload to unexpected bucket", "bucket", oc.Bucket)
		return router.ClientError(requestID, fmt.Sprintf("unexpected bucket %q", oc.Bucket)), nil
	}

	key, err := url.QueryUnescape(oc.Key)
	if err != nil {
		return router.ClientError(requestID, "object key is not valid URL encoding"), nil
	}

	owner, fileName, ok := splitObjectKey(key)
	if !ok {
		return router.ClientError(requestID, fmt.Sprintf("object key %q has unexpected shape", key)), nil
	}
	if !uuidRe.MatchString(owner) {
		return router.ClientError(requestID, fmt.Sprintf("owner segment %q is not a valid UUID", owner)), nil
	}
	userID, err := uuid.Parse(owner)
	if err != nil {
		return router.ClientError(requestID, fmt.Sprintf("owner segment %q is not a valid UUID", owner)), nil
	}

	doc := store.Document{
		ID:               uuid.New(),
		UserID:           userID,
		FileName:         fileName,
		FileURL:          p.objects.PublicURL(oc.Bucket, key),
		UploadStatus:     store.StatusUploaded,
		ProcessingStatus: store.StatusProcessing,
		AnalysisStatus:   store.StatusProcessing,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return router.Response{}, fmt.Errorf("create document: %w", err)
	}
	log = log.With("document_id", doc.ID)

	// The object must be readable before a job is submitted against it.
	if err := p.objects.Exists(ctx, oc.Bucket, key); err != nil {
		p.failDocument(ctx, log, doc.ID)
		return router.Response{}, fmt.Errorf("uploaded object not accessible: %w", err)
	}

	jobID, err := p.analyzer.StartAnalysis(ctx, oc.Bucket, key)
	if err != nil {
		p.failDocument(ctx, log, doc.ID)
		return router.Response{}, fmt.Errorf("start analysis: %w", err)
	}

	job := store.AnalysisJob{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		ExternalJobID: jobID,
		Status:        store.JobProcessing,
	}
	if err := p.store.AttachJob(ctx, job); err != nil {
		return router.Response{}, fmt.Errorf("attach analysis job: %w", err)
	}

	log.Info("analysis job started", "job_id", jobID, "file", fileName)
	return router.OK(requestID, map[string]any{
		"documentId": doc.ID.String(),
		"jobId":      jobID,
	}), nil
}

// splitObjectKey parses "<owner>/<...>/<file>" keys. A bare filename
// belongs to the fallback owner.
func splitObjectKey(key string) (owner, fileName string, ok bool) {
	segments := strings.Split(key, "/")
	switch {
	case len(segments) == 1:
		owner, fileName = FallbackUserID, segments[0]
	default:
		owner, fileName = segments[0], segments[len(segments)-1]
	}
	if fileName == "" || owner == "" {
		return "", "", false
	}
	return owner, fileName, true
}

func (p *Pipeline) failDocument(ctx context.Context, log *slog.Logger, docID uuid.UUID) {
	if err := p.store.MarkDocumentFailed(ctx, docID); err != nil {
		log.Error("failed to mark document failed", "err", err)
	}
}
