package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"claims-ingest/internal/logger"
)

// Kind identifies the shape of an inbound event envelope.
type Kind string

const (
	KindObjectCreated Kind = "object_created"
	KindNotification  Kind = "notification"
	KindAPIRequest    Kind = "api_request"
	KindUnrecognized  Kind = "unrecognized"
)

// ObjectCreated is a storage "object created" record. The key is still
// URL-encoded, as delivered.
type ObjectCreated struct {
	Bucket string
	Key    string
}

// Notification is a pub/sub job-completion record carrying the raw
// message payload.
type Notification struct {
	Message string
}

// APIRequest is an HTTP-shaped event.
type APIRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   string
}

// Event is the classified envelope. Exactly one of the pointer fields
// is set for its Kind.
type Event struct {
	Kind          Kind
	ObjectCreated *ObjectCreated
	Notification  *Notification
	API           *APIRequest
}

// Response is the HTTP-shaped function result. The body always carries
// the request correlation id.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type envelope struct {
	Records []struct {
		EventSource    string `json:"eventSource"`
		EventSourceSNS string `json:"EventSource"`
		S3             *struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
		SNS *struct {
			Message string `json:"Message"`
		} `json:"Sns"`
	} `json:"Records"`
	HTTPMethod            string            `json:"httpMethod"`
	RawPath               string            `json:"rawPath"`
	Path                  string            `json:"path"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Body                  string            `json:"body"`
}

// Classify probes the envelope once and returns a typed event. It never
// fails; anything it cannot place is KindUnrecognized.
func Classify(raw []byte) Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{Kind: KindUnrecognized}
	}

	if len(env.Records) > 0 {
		rec := env.Records[0]
		if rec.EventSource == "aws:s3" && rec.S3 != nil {
			return Event{Kind: KindObjectCreated, ObjectCreated: &ObjectCreated{
				Bucket: rec.S3.Bucket.Name,
				Key:    rec.S3.Object.Key,
			}}
		}
		if rec.EventSourceSNS == "aws:sns" && rec.SNS != nil {
			return Event{Kind: KindNotification, Notification: &Notification{
				Message: rec.SNS.Message,
			}}
		}
		return Event{Kind: KindUnrecognized}
	}

	if env.HTTPMethod != "" || env.RawPath != "" {
		path := env.Path
		if path == "" {
			path = env.RawPath
		}
		method := env.HTTPMethod
		if method == "" {
			method = http.MethodGet
		}
		return Event{Kind: KindAPIRequest, API: &APIRequest{
			Method: method,
			Path:   path,
			Query:  env.QueryStringParameters,
			Body:   env.Body,
		}}
	}

	return Event{Kind: KindUnrecognized}
}

// Handler processes one classified event.
type Handler func(ctx context.Context, evt Event, requestID string) (Response, error)

// Router dispatches classified events to exactly one handler. Handler
// errors and panics are converted to 500 responses carrying the
// correlation id; they never escape.
type Router struct {
	log *slog.Logger

	OnObjectCreated Handler
	OnNotification  Handler
	OnAPIRequest    Handler
}

func New(log *slog.Logger) *Router {
	return &Router{log: log}
}

func (r *Router) Dispatch(ctx context.Context, raw []byte) Response {
	requestID := uuid.NewString()
	log := logger.WithRequestID(r.log, requestID)

	evt := Classify(raw)
	log.Info("event received", "kind", evt.Kind)

	var handler Handler
	switch evt.Kind {
	case KindObjectCreated:
		handler = r.OnObjectCreated
	case KindNotification:
		handler = r.OnNotification
	case KindAPIRequest:
		handler = r.OnAPIRequest
	default:
		return ClientError(requestID, "unrecognized event shape")
	}
	if handler == nil {
		return ClientError(requestID, fmt.Sprintf("no handler for event kind %s", evt.Kind))
	}

	resp, err := invoke(ctx, handler, evt, requestID)
	if err != nil {
		log.Error("handler failed", "kind", evt.Kind, "err", err)
		return ServerError(requestID, err)
	}
	return resp
}

func invoke(ctx context.Context, handler Handler, evt Event, requestID string) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return handler(ctx, evt, requestID)
}

// OK builds a success response; the payload is merged with requestId.
func OK(requestID string, payload map[string]any) Response {
	return respond(http.StatusOK, requestID, payload)
}

// ClientError builds a 400 response.
func ClientError(requestID, message string) Response {
	return respond(http.StatusBadRequest, requestID, map[string]any{"error": message})
}

// Forbidden builds a 403 response.
func Forbidden(requestID, message string) Response {
	return respond(http.StatusForbidden, requestID, map[string]any{"error": message})
}

// ServerError builds a 500 response.
func ServerError(requestID string, err error) Response {
	return respond(http.StatusInternalServerError, requestID, map[string]any{"error": err.Error()})
}

func respond(status int, requestID string, payload map[string]any) Response {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["requestId"] = requestID
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"requestId":%q}`, requestID))
	}
	return Response{StatusCode: status, Body: string(data)}
}
