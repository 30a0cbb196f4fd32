package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{
			name: "s3 object created",
			raw:  `{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":"uploads"},"object":{"key":"abc%2Ffile.pdf"}}}]}`,
			want: KindObjectCreated,
		},
		{
			name: "sns notification",
			raw:  `{"Records":[{"EventSource":"aws:sns","Sns":{"Message":"{\"JobId\":\"j1\",\"Status\":\"SUCCEEDED\"}"}}]}`,
			want: KindNotification,
		},
		{
			name: "api request v1",
			raw:  `{"httpMethod":"GET","path":"/get-s3-url","queryStringParameters":{"key":"f.pdf"}}`,
			want: KindAPIRequest,
		},
		{
			name: "api request v2",
			raw:  `{"rawPath":"/get-s3-url"}`,
			want: KindAPIRequest,
		},
		{
			name: "records of unknown source",
			raw:  `{"Records":[{"eventSource":"aws:dynamodb"}]}`,
			want: KindUnrecognized,
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: KindUnrecognized,
		},
		{
			name: "not json",
			raw:  `garbage`,
			want: KindUnrecognized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := Classify([]byte(tt.raw))
			if evt.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", evt.Kind, tt.want)
			}
		})
	}
}

func TestClassifyExtractsFields(t *testing.T) {
	evt := Classify([]byte(`{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":"uploads"},"object":{"key":"u%2Ff.pdf"}}}]}`))
	if evt.ObjectCreated == nil {
		t.Fatal("expected ObjectCreated")
	}
	if evt.ObjectCreated.Bucket != "uploads" {
		t.Errorf("bucket = %q", evt.ObjectCreated.Bucket)
	}
	// Key is delivered still URL-encoded; decoding is the handler's job.
	if evt.ObjectCreated.Key != "u%2Ff.pdf" {
		t.Errorf("key = %q", evt.ObjectCreated.Key)
	}
}

func requestID(t *testing.T, resp Response) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	id, _ := body["requestId"].(string)
	if id == "" {
		t.Fatal("response body missing requestId")
	}
	return id
}

func TestDispatchUnrecognized(t *testing.T) {
	r := New(testLogger())
	resp := r.Dispatch(context.Background(), []byte(`{"something":"else"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	requestID(t, resp)
}

func TestDispatchRoutesToHandler(t *testing.T) {
	r := New(testLogger())
	var gotKind Kind
	r.OnNotification = func(ctx context.Context, evt Event, reqID string) (Response, error) {
		gotKind = evt.Kind
		return OK(reqID, map[string]any{"handled": true}), nil
	}
	resp := r.Dispatch(context.Background(), []byte(`{"Records":[{"EventSource":"aws:sns","Sns":{"Message":"m"}}]}`))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if gotKind != KindNotification {
		t.Errorf("handler saw kind %s", gotKind)
	}
	requestID(t, resp)
}

func TestDispatchConvertsErrorsTo500(t *testing.T) {
	r := New(testLogger())
	r.OnNotification = func(ctx context.Context, evt Event, reqID string) (Response, error) {
		return Response{}, errors.New("boom")
	}
	resp := r.Dispatch(context.Background(), []byte(`{"Records":[{"EventSource":"aws:sns","Sns":{"Message":"m"}}]}`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	requestID(t, resp)
}

func TestDispatchConvertsPanicsTo500(t *testing.T) {
	r := New(testLogger())
	r.OnObjectCreated = func(ctx context.Context, evt Event, reqID string) (Response, error) {
		panic("unexpected")
	}
	resp := r.Dispatch(context.Background(), []byte(`{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":"b"},"object":{"key":"k"}}}]}`))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	requestID(t, resp)
}
