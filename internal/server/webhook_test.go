// ABOUTME: Tests for the scan webhook HTTP handler.
// ABOUTME: Tests status code mapping, body limits, rate limiting, and method handling.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jfeddern/ScanRelay/internal/engine"
	"github.com/jfeddern/ScanRelay/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	summary *engine.Summary
	err     error
	calls   int
	body    []byte
}

func (s *stubProcessor) ProcessScanEvent(ctx context.Context, body []byte) (*engine.Summary, error) {
	s.calls++
	s.body = body
	return s.summary, s.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func postWebhook(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestWebhookSuccess(t *testing.T) {
	processor := &stubProcessor{summary: &engine.Summary{
		ProjectKey: "test-project",
		ScanTime:   "2024-01-15T10:30:00+0000",
		Score:      100,
		Artifacts:  []string{engine.RawEventArtifact, engine.ScanResultsArtifact},
	}}
	handler := NewWebhookHandler(processor, 0, 0, testLogger())

	rec := postWebhook(handler, `{"project":{"key":"test-project"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, processor.calls)
	assert.Equal(t, `{"project":{"key":"test-project"}}`, string(processor.body))

	var summary engine.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "test-project", summary.ProjectKey)
	assert.Equal(t, 100, summary.Score)
}

func TestWebhookErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation error",
			err:        &types.ValidationError{Field: "project.key", Message: `"project.key" is required`},
			wantStatus: http.StatusBadRequest,
			wantMsg:    `"project.key" is required`,
		},
		{
			name: "wrapped transport error",
			err: &types.OrchestrationFailure{Branch: engine.BranchResults, Err: fmt.Errorf("fetch: %w", &types.TransportError{
				System: "sonarqube", Endpoint: "/api/issues/search", StatusCode: 503, Err: errors.New("unavailable"),
			})},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "missing metrics",
			err:        &types.OrchestrationFailure{Branch: engine.BranchResults, Err: &types.MissingMetricError{Metrics: []string{"coverage"}}},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWebhookHandler(&stubProcessor{err: tt.err}, 0, 0, testLogger())
			rec := postWebhook(handler, `{}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			msg := decodeError(t, rec)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			} else {
				assert.Equal(t, tt.err.Error(), msg)
			}
		})
	}
}

func TestWebhookRejectsOtherMethods(t *testing.T) {
	processor := &stubProcessor{}
	handler := NewWebhookHandler(processor, 0, 0, testLogger())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(method, WebhookPath, nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			assert.Equal(t, MethodNotAllowedMessage, decodeError(t, rec))
		})
	}
	assert.Zero(t, processor.calls)
}

func TestWebhookBodyTooLarge(t *testing.T) {
	processor := &stubProcessor{summary: &engine.Summary{}}
	handler := NewWebhookHandler(processor, 0, 16, testLogger())

	rec := postWebhook(handler, strings.Repeat("x", 64))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, processor.calls)
}

func TestWebhookRateLimit(t *testing.T) {
	processor := &stubProcessor{summary: &engine.Summary{}}
	handler := NewWebhookHandler(processor, 2, 0, testLogger())

	assert.Equal(t, http.StatusOK, postWebhook(handler, `{}`).Code)
	assert.Equal(t, http.StatusOK, postWebhook(handler, `{}`).Code)

	rec := postWebhook(handler, `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, processor.calls)
}

func TestWebhookIgnoresClientCancellation(t *testing.T) {
	var ctxErr error
	processor := processorFunc(func(ctx context.Context, body []byte) (*engine.Summary, error) {
		ctxErr = ctx.Err()
		return &engine.Summary{}, nil
	})
	handler := NewWebhookHandler(processor, 0, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, ctxErr)
}

type processorFunc func(ctx context.Context, body []byte) (*engine.Summary, error)

func (f processorFunc) ProcessScanEvent(ctx context.Context, body []byte) (*engine.Summary, error) {
	return f(ctx, body)
}

func TestNotFoundHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, NotFoundMessage, decodeError(t, rec))
}
