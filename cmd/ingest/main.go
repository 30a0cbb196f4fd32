package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/sync/errgroup"

	"claims-ingest/internal/app"
	"claims-ingest/internal/httputil"
	"claims-ingest/internal/ingest"
	"claims-ingest/internal/queue"
	"claims-ingest/internal/router"
)

func main() {
	ctx := context.Background()
	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Cache.Close()

	pipeline := ingest.New(deps.Log, deps.Store, deps.Analyzer, deps.Objects, deps.Cache, deps.Config.UploadBucket)

	rt := router.New(deps.Log)
	rt.OnObjectCreated = pipeline.HandleObjectCreated
	rt.OnNotification = pipeline.HandleNotification
	rt.OnAPIRequest = pipeline.HandleAPIRequest

	g, ctx := errgroup.WithContext(ctx)

	// Run the HTTP front door.
	g.Go(func() error {
		return serveHTTP(deps, rt)
	})

	// Run the queue worker when a queue is configured.
	if deps.Queue != nil {
		g.Go(func() error {
			deps.Log.Info("queue worker starting")
			return deps.Queue.Worker(ctx, func(ctx context.Context, d queue.Delivery) error {
				resp := rt.Dispatch(ctx, d.Envelope)
				if resp.StatusCode >= http.StatusInternalServerError {
					return fmt.Errorf("envelope handling failed with status %d", resp.StatusCode)
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		deps.Log.Error("ingestion service stopped", "err", err)
	}
}

func serveHTTP(deps app.Deps, rt *router.Router) error {
	r := httputil.NewRouter(deps.Log)

	r.Post("/events", eventsHandler(deps, rt))
	r.Get("/get-s3-url", signedURLHandler(deps, rt))
	r.Post("/get-s3-url", signedURLHandler(deps, rt))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("ingestion service listening", "addr", addr)
	return http.ListenAndServe(addr, r)
}

// eventsHandler accepts raw event envelopes (S3 records, SNS records, or
// proxied API requests) and routes them through classification.
func eventsHandler(deps app.Deps, rt *router.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read request body", err, http.StatusBadRequest)
			return
		}
		writeResponse(w, rt.Dispatch(r.Context(), raw))
	}
}

// signedURLHandler adapts a plain HTTP request into the proxied-request
// envelope shape so the same pipeline handler serves both entry points.
func signedURLHandler(deps app.Deps, rt *router.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := ""
		if r.Method == http.MethodPost {
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				httputil.Fail(deps.Log, w, "failed to read request body", err, http.StatusBadRequest)
				return
			}
			body = string(raw)
		}
		envelope, err := json.Marshal(map[string]any{
			"httpMethod":            r.Method,
			"path":                  r.URL.Path,
			"queryStringParameters": flattenQuery(r.URL.Query()),
			"body":                  body,
		})
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to build envelope", err, http.StatusInternalServerError)
			return
		}
		writeResponse(w, rt.Dispatch(r.Context(), envelope))
	}
}

func flattenQuery(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp router.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}
