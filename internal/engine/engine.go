// ABOUTME: Scan event orchestration engine that coordinates the relay providers.
// ABOUTME: Validates events, then runs status forwarding and result collection concurrently.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/jfeddern/ScanRelay/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// RawEventArtifact is the artifact name of the forwarded webhook body
	RawEventArtifact = "SonarQubeResults"
	// ScanResultsArtifact is the artifact name of the aggregated scan result
	ScanResultsArtifact = "SonarQubeScanResults"

	BranchStatus  = "status"
	BranchResults = "results"

	passingQualityGate = "OK"
)

// ScanResultSource retrieves and aggregates the results of one analysis
type ScanResultSource interface {
	Name() string
	GetScanResults(ctx context.Context, projectKey, analysedAt string) (*types.ScanResult, error)
}

// SubmissionForwarder reports review status and raw artifacts to the submission API
type SubmissionForwarder interface {
	Name() string
	UpdateReviewStatus(ctx context.Context, payload *types.ReviewStatusPayload) error
	UploadArtifact(ctx context.Context, submissionID, name string, content []byte) error
}

// ArtifactStore persists the aggregated scan result
type ArtifactStore interface {
	Name() string
	PutArtifact(ctx context.Context, submissionID, name string, content []byte) error
}

// Recorder receives per-event statistics. It may be nil.
type Recorder interface {
	ObserveEvent(outcome string, duration time.Duration)
	AddBranchFailure(branch string)
}

// Summary describes a successfully relayed scan event
type Summary struct {
	ProjectKey string   `json:"projectKey"`
	ScanTime   string   `json:"scanTime"`
	Score      int      `json:"score"`
	Artifacts  []string `json:"artifacts"`
}

// Engine orchestrates scan event processing using pluggable providers
type Engine struct {
	source    ScanResultSource
	forwarder SubmissionForwarder
	store     ArtifactStore
	validator *validation.Validator
	recorder  Recorder
	newID     func() string
	logger    *logrus.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithRecorder attaches a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithIDGenerator replaces the random UUID generator used for review ids
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a new scan event engine
func NewEngine(source ScanResultSource, forwarder SubmissionForwarder, store ArtifactStore, logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		forwarder: forwarder,
		store:     store,
		validator: validation.Must(),
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessScanEvent validates a webhook body and relays it. Nothing is sent to
// any provider unless the event is valid. Both branches always run to
// completion; the first failure is returned as an *types.OrchestrationFailure.
func (e *Engine) ProcessScanEvent(ctx context.Context, body []byte) (*Summary, error) {
	start := time.Now()
	logger := e.logger.WithField("operation", "process_scan_event")

	event, err := e.parseEvent(body)
	if err != nil {
		logger.WithError(err).Warn("Rejected invalid scan event")
		e.observe("invalid", start)
		return nil, err
	}

	logger = logger.WithFields(logrus.Fields{
		"project_key":  event.Project.Key,
		"analysed_at":  event.AnalysedAt,
		"quality_gate": event.QualityGate.Status,
	})
	logger.Info("Processing scan event")

	payload := e.reviewPayload(event)

	var g errgroup.Group

	g.Go(func() error {
		if err := e.forwardStatus(ctx, event, payload); err != nil {
			return e.branchFailure(logger, BranchStatus, err)
		}
		return nil
	})

	g.Go(func() error {
		if err := e.storeResults(ctx, event); err != nil {
			return e.branchFailure(logger, BranchResults, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		e.observe("failed", start)
		return nil, err
	}

	e.observe("relayed", start)
	logger.WithField("duration", time.Since(start)).Info("Scan event relayed")

	return &Summary{
		ProjectKey: event.Project.Key,
		ScanTime:   event.AnalysedAt,
		Score:      payload.Score,
		Artifacts:  []string{RawEventArtifact, ScanResultsArtifact},
	}, nil
}

func (e *Engine) parseEvent(body []byte) (*types.ScanEvent, error) {
	var event types.ScanEvent
	if err := validation.Decode(body, &event, "body"); err != nil {
		return nil, err
	}

	event.ServerURL = strings.TrimSpace(event.ServerURL)
	if err := e.validator.Struct(&event); err != nil {
		return nil, err
	}

	event.Raw = append(json.RawMessage(nil), body...)
	return &event, nil
}

func (e *Engine) reviewPayload(event *types.ScanEvent) *types.ReviewStatusPayload {
	score := 0
	if event.QualityGate.Status == passingQualityGate {
		score = 100
	}

	return &types.ReviewStatusPayload{
		Score:        score,
		ReviewerID:   e.newID(),
		SubmissionID: event.Project.Key,
		ScoreCardID:  e.newID(),
	}
}

// forwardStatus updates the review status, then uploads the raw event
func (e *Engine) forwardStatus(ctx context.Context, event *types.ScanEvent, payload *types.ReviewStatusPayload) error {
	if err := e.forwarder.UpdateReviewStatus(ctx, payload); err != nil {
		return fmt.Errorf("failed to update review status via %s: %w", e.forwarder.Name(), err)
	}

	if err := e.forwarder.UploadArtifact(ctx, event.Project.Key, RawEventArtifact, event.Raw); err != nil {
		return fmt.Errorf("failed to upload %s via %s: %w", RawEventArtifact, e.forwarder.Name(), err)
	}
	return nil
}

// storeResults fetches and aggregates the scan results, then stores them
func (e *Engine) storeResults(ctx context.Context, event *types.ScanEvent) error {
	result, err := e.source.GetScanResults(ctx, event.Project.Key, event.AnalysedAt)
	if err != nil {
		return fmt.Errorf("failed to get scan results from %s: %w", e.source.Name(), err)
	}

	content, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode scan results: %w", err)
	}

	if err := e.store.PutArtifact(ctx, event.Project.Key, ScanResultsArtifact, content); err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", ScanResultsArtifact, e.store.Name(), err)
	}
	return nil
}

func (e *Engine) branchFailure(logger *logrus.Entry, branch string, err error) error {
	logger.WithError(err).WithField("branch", branch).Error("Scan event branch failed")
	if e.recorder != nil {
		e.recorder.AddBranchFailure(branch)
	}
	return &types.OrchestrationFailure{Branch: branch, Err: err}
}

func (e *Engine) observe(outcome string, start time.Time) {
	if e.recorder != nil {
		e.recorder.ObserveEvent(outcome, time.Since(start))
	}
}
