package ingest

import (
	"log/slog"

	"claims-ingest/internal/cache"
	"claims-ingest/internal/objectstore"
	"claims-ingest/internal/ocr"
	"claims-ingest/internal/store"
)

// Pipeline wires the ingestion handlers to their collaborators. Each
// event invocation is stateless; nothing is shared between invocations
// beyond these clients.
type Pipeline struct {
	log      *slog.Logger
	store    store.Store
	analyzer ocr.Analyzer
	objects  objectstore.ObjectStore
	cache    cache.Cache
	bucket   string
}

func New(log *slog.Logger, st store.Store, analyzer ocr.Analyzer, objects objectstore.ObjectStore, c cache.Cache, bucket string) *Pipeline {
	return &Pipeline{
		log:      log,
		store:    st,
		analyzer: analyzer,
		objects:  objects,
		cache:    c,
		bucket:   bucket,
	}
}
