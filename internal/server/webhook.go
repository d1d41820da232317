// ABOUTME: HTTP handler for the scan completion webhook endpoint.
// ABOUTME: Maps orchestration outcomes to JSON responses and status codes.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jfeddern/ScanRelay/internal/engine"
	"github.com/jfeddern/ScanRelay/internal/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	WebhookPath = "/scan/webhook"

	MethodNotAllowedMessage = "The requested HTTP method is not supported."
	NotFoundMessage         = "The requested resource cannot be found."

	defaultMaxBodyBytes = 10 << 20
)

type ScanEventProcessor interface {
	ProcessScanEvent(ctx context.Context, body []byte) (*engine.Summary, error)
}

type WebhookHandler struct {
	processor    ScanEventProcessor
	limiter      *rate.Limiter
	maxBodyBytes int64
	logger       *logrus.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewWebhookHandler creates the webhook handler. A rateLimitPerMin of 0
// disables rate limiting.
func NewWebhookHandler(processor ScanEventProcessor, rateLimitPerMin int, maxBodyBytes int64, logger *logrus.Logger) *WebhookHandler {
	h := &WebhookHandler{
		processor:    processor,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}
	if rateLimitPerMin > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rateLimitPerMin)), rateLimitPerMin)
	}
	return h
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithField("endpoint", WebhookPath)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, MethodNotAllowedMessage)
		return
	}

	if h.limiter != nil && !h.limiter.Allow() {
		logger.WithField("remote_ip", r.RemoteAddr).Warn("Webhook rate limit exceeded")
		WriteError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Relaying continues even if the caller goes away
	ctx := context.WithoutCancel(r.Context())

	summary, err := h.processor.ProcessScanEvent(ctx, body)
	if err != nil {
		status := StatusForError(err)
		logger.WithError(err).WithField("status", status).Warn("Scan event processing failed")
		WriteError(w, status, err.Error())
		return
	}

	logger.WithFields(logrus.Fields{
		"project_key": summary.ProjectKey,
		"score":       summary.Score,
	}).Debug("Scan event accepted")

	WriteJSON(w, http.StatusOK, summary)
}

// StatusForError maps the error taxonomy to HTTP status codes
func StatusForError(err error) int {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var transportErr *types.TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// NotFoundHandler answers every unmatched route
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, NotFoundMessage)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// CreateWebhookHandler creates a standard HTTP handler that can be used with http.ServeMux
func CreateWebhookHandler(processor ScanEventProcessor, rateLimitPerMin int, maxBodyBytes int64, logger *logrus.Logger) http.HandlerFunc {
	return NewWebhookHandler(processor, rateLimitPerMin, maxBodyBytes, logger).ServeHTTP
}
