// ABOUTME: Unit tests for the mock scan result source and submission API.
// ABOUTME: Validates generated data and provider interface compliance.

package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSonarQubeSource_Name(t *testing.T) {
	source := NewMockSonarQubeSource(logrus.New())
	assert.Equal(t, "mock-sonarqube", source.Name())
}

func TestMockSonarQubeSource_GetScanResults(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	source := NewMockSonarQubeSource(logger)

	tests := []struct {
		name       string
		projectKey string
		wantTotal  int
		wantBugs   int
	}{
		{"default profile", "web-app", 4, 1},
		{"clean project", "clean-lib", 0, 0},
		{"legacy project", "legacy-monolith", 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := source.GetScanResults(context.Background(), tt.projectKey, "2019-08-03T19:07:05+0000")
			require.NoError(t, err)

			assert.Equal(t, tt.projectKey, res.ProjectKey)
			assert.Equal(t, "2019-08-03T19:07:05+0000", res.ScanTime)
			assert.Len(t, res.Measures, len(types.Categories))
			assert.Len(t, res.Issues, len(types.Categories))

			total := 0
			for category, issues := range res.Issues {
				total += len(issues)
				assert.Equal(t, float64(len(issues)), res.Measures[category])
			}
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, res.Issues[types.CategoryBugs], tt.wantBugs)
		})
	}
}

func TestMockSonarQubeSource_Outage(t *testing.T) {
	source := NewMockSonarQubeSource(logrus.New())

	_, err := source.GetScanResults(context.Background(), "unavailable-project", "now")
	var transportErr *types.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, 503, transportErr.StatusCode)
}

func TestMockSubmissionAPI(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	api := NewMockSubmissionAPI(logger)
	ctx := context.Background()

	assert.Equal(t, "mock-submission-api", api.Name())

	payload := &types.ReviewStatusPayload{Score: 100, ReviewerID: "r", SubmissionID: "s", ScoreCardID: "c"}
	require.NoError(t, api.UpdateReviewStatus(ctx, payload))
	assert.Error(t, api.UpdateReviewStatus(ctx, nil))

	content := []byte(`{"a":1}`)
	require.NoError(t, api.UploadArtifact(ctx, "s", "SonarQubeResults", content))
	require.NoError(t, api.PutArtifact(ctx, "s", "SonarQubeScanResults", []byte(`{}`)))
	content[0] = 'x'

	assert.Equal(t, []types.ReviewStatusPayload{*payload}, api.Reviews())

	artifacts := api.Artifacts()
	require.Len(t, artifacts, 2)
	assert.Equal(t, "SonarQubeResults", artifacts[0].Name)
	assert.Equal(t, `{"a":1}`, string(artifacts[0].Content))
	assert.Equal(t, "SonarQubeScanResults", artifacts[1].Name)
}

func TestMockSubmissionAPI_Concurrent(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	api := NewMockSubmissionAPI(logger)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.PutArtifact(context.Background(), "s", "n", []byte(`{}`))
		}()
	}
	wg.Wait()

	assert.Len(t, api.Artifacts(), 20)
}
