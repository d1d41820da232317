// ABOUTME: Mock submission API and artifact store for local testing and development.
// ABOUTME: Records reviews and artifacts in memory instead of sending them.

package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// Artifact is a recorded artifact upload
type Artifact struct {
	SubmissionID string
	Name         string
	Content      []byte
}

// MockSubmissionAPI implements SubmissionForwarder and ArtifactStore in memory
type MockSubmissionAPI struct {
	mu        sync.Mutex
	reviews   []types.ReviewStatusPayload
	artifacts []Artifact
	logger    *logrus.Logger
}

// NewMockSubmissionAPI creates a new in-memory submission API
func NewMockSubmissionAPI(logger *logrus.Logger) *MockSubmissionAPI {
	return &MockSubmissionAPI{
		logger: logger,
	}
}

// Name returns the name of this forwarder
func (m *MockSubmissionAPI) Name() string {
	return "mock-submission-api"
}

// UpdateReviewStatus records the review
func (m *MockSubmissionAPI) UpdateReviewStatus(ctx context.Context, payload *types.ReviewStatusPayload) error {
	if payload == nil {
		return fmt.Errorf("review payload is required")
	}

	m.mu.Lock()
	m.reviews = append(m.reviews, *payload)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"submission_id": payload.SubmissionID,
		"score":         payload.Score,
	}).Info("Recorded mock review")
	return nil
}

// UploadArtifact records the artifact
func (m *MockSubmissionAPI) UploadArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	m.mu.Lock()
	m.artifacts = append(m.artifacts, Artifact{
		SubmissionID: submissionID,
		Name:         name,
		Content:      append([]byte(nil), content...),
	})
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"submission_id": submissionID,
		"artifact":      name,
		"size":          len(content),
	}).Info("Recorded mock artifact")
	return nil
}

// PutArtifact records the artifact
func (m *MockSubmissionAPI) PutArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	return m.UploadArtifact(ctx, submissionID, name, content)
}

// Reviews returns a copy of the recorded reviews
func (m *MockSubmissionAPI) Reviews() []types.ReviewStatusPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ReviewStatusPayload(nil), m.reviews...)
}

// Artifacts returns a copy of the recorded artifacts
func (m *MockSubmissionAPI) Artifacts() []Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Artifact(nil), m.artifacts...)
}
