// ABOUTME: Mock SonarQube scan result source for local testing and development.
// ABOUTME: Provides realistic measures and issues without requiring a SonarQube server.

package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfeddern/ScanRelay/internal/providers/sonarqube"
	"github.com/jfeddern/ScanRelay/internal/types"
	"github.com/sirupsen/logrus"
)

// MockSonarQubeSource implements ScanResultSource with generated data
type MockSonarQubeSource struct {
	logger *logrus.Logger
}

// NewMockSonarQubeSource creates a new mock scan result source
func NewMockSonarQubeSource(logger *logrus.Logger) *MockSonarQubeSource {
	return &MockSonarQubeSource{
		logger: logger,
	}
}

// Name returns the name of this scan result source
func (m *MockSonarQubeSource) Name() string {
	return "mock-sonarqube"
}

// GetScanResults returns mock results whose profile depends on the project key.
// Keys containing "unavailable" simulate a server outage.
func (m *MockSonarQubeSource) GetScanResults(ctx context.Context, projectKey, analysedAt string) (*types.ScanResult, error) {
	m.logger.WithField("project_key", projectKey).Debug("Getting mock scan results")

	if strings.Contains(projectKey, "unavailable") {
		return nil, &types.TransportError{
			System:     "mock-sonarqube",
			Endpoint:   sonarqube.IssuesEndpoint,
			StatusCode: 503,
			Err:        fmt.Errorf("simulated outage"),
		}
	}

	var issueTypes []string
	switch {
	case strings.Contains(projectKey, "clean"):
		issueTypes = nil
	case strings.Contains(projectKey, "legacy"):
		issueTypes = m.legacyProfile()
	default:
		issueTypes = []string{"CODE_SMELL", "CODE_SMELL", "BUG", "SECURITY_HOTSPOT"}
	}

	issues := types.NewIssueCategories()
	for i, issueType := range issueTypes {
		category, ok := sonarqube.Classify(issueType)
		if !ok {
			continue
		}
		issues[category] = append(issues[category], m.issue(projectKey, issueType, i))
	}

	measures := make(types.Measures, len(types.Categories))
	for _, category := range types.Categories {
		measures[category] = float64(len(issues[category]))
	}

	return sonarqube.Aggregate(projectKey, analysedAt, measures, issues), nil
}

func (m *MockSonarQubeSource) legacyProfile() []string {
	var profile []string
	for i := 0; i < 12; i++ {
		profile = append(profile, "CODE_SMELL")
	}
	for i := 0; i < 5; i++ {
		profile = append(profile, "BUG")
	}
	return append(profile, "VULNERABILITY", "VULNERABILITY", "SECURITY_HOTSPOT")
}

func (m *MockSonarQubeSource) issue(projectKey, issueType string, n int) types.Issue {
	severity := "MINOR"
	switch issueType {
	case "BUG":
		severity = "MAJOR"
	case "VULNERABILITY":
		severity = "CRITICAL"
	}

	return types.Issue{
		Type: issueType,
		Fields: map[string]any{
			"key":       fmt.Sprintf("MOCK-%s-%03d", strings.ToUpper(projectKey), n+1),
			"type":      issueType,
			"severity":  severity,
			"component": fmt.Sprintf("%s:src/main.go", projectKey),
			"line":      10 * (n + 1),
			"status":    "OPEN",
			"message":   fmt.Sprintf("Mock %s finding", strings.ToLower(strings.ReplaceAll(issueType, "_", " "))),
		},
	}
}
