package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"claims-ingest/internal/cache"
	"claims-ingest/internal/logger"
	"claims-ingest/internal/router"
	"claims-ingest/internal/store"
)

const (
	signedURLPath   = "/get-s3-url"
	signedURLExpiry = 5 * time.Minute
	ownershipTTL    = time.Minute
)

var validate = validator.New()

type signedURLRequest struct {
	Key    string `json:"key" validate:"required"`
	UserID string `json:"userId" validate:"required,uuid_rfc4122"`
}

// HandleAPIRequest serves the authenticated signed-download-URL
// endpoint. Parameters come from the query string or a JSON body.
func (p *Pipeline) HandleAPIRequest(ctx context.Context, evt router.Event, requestID string) (router.Response, error) {
	api := evt.API
	log := logger.WithRequestID(p.log, requestID)

	if api.Path != signedURLPath {
		return router.ClientError(requestID, fmt.Sprintf("unsupported path %q", api.Path)), nil
	}

	req := signedURLRequest{
		Key:    api.Query["key"],
		UserID: api.Query["userId"],
	}
	if req.Key == "" && req.UserID == "" && api.Body != "" {
		if err := json.Unmarshal([]byte(api.Body), &req); err != nil {
			return router.ClientError(requestID, "request body is not valid JSON"), nil
		}
	}
	if err := validate.Struct(req); err != nil {
		return router.ClientError(requestID, "key and userId are required; userId must be a UUID"), nil
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return router.ClientError(requestID, "userId must be a UUID"), nil
	}

	fileURL, ok, err := p.resolveOwnership(ctx, userID, req.Key)
	if err != nil {
		return router.Response{}, err
	}
	if !ok {
		log.Warn("signed url denied", "user_id", userID, "key", req.Key)
		return router.Forbidden(requestID, "document not found for user"), nil
	}

	objectKey, err := objectKeyFromURL(fileURL)
	if err != nil {
		return router.Response{}, err
	}
	signed, err := p.objects.PresignGet(ctx, p.bucket, objectKey, signedURLExpiry)
	if err != nil {
		return router.Response{}, fmt.Errorf("presign download url: %w", err)
	}

	return router.OK(requestID, map[string]any{
		"url":       signed,
		"expiresIn": int(signedURLExpiry.Seconds()),
	}), nil
}

// resolveOwnership answers whether the user owns a document whose
// storage URL ends with key, fronted by the ownership cache.
func (p *Pipeline) resolveOwnership(ctx context.Context, userID uuid.UUID, key string) (fileURL string, ok bool, err error) {
	ck := cache.Key(userID.String(), key)
	if rec, cerr := p.cache.GetOwnership(ctx, ck); cerr == nil && rec != nil {
		return rec.FileURL, true, nil
	}

	doc, err := p.store.FindOwnedDocument(ctx, userID, key)
	if errors.Is(err, store.ErrDocumentNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ownership lookup: %w", err)
	}

	if cerr := p.cache.SetOwnership(ctx, ck, &cache.Ownership{
		DocumentID: doc.ID.String(),
		FileURL:    doc.FileURL,
	}, ownershipTTL); cerr != nil {
		p.log.Warn("ownership cache write failed", "err", cerr)
	}
	return doc.FileURL, true, nil
}

func objectKeyFromURL(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("stored file url is not parseable: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("stored file url %q has no object key", fileURL)
	}
	return key, nil
}
