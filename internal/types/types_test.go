// ABOUTME: Unit tests for shared type decoding and error formatting.
// ABOUTME: Covers open-schema issue decoding, metric value coercion, and error unwrapping.

package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueKeepsUnknownFields(t *testing.T) {
	var issue Issue
	require.NoError(t, json.Unmarshal([]byte(`{"type":"BUG","someField":1,"component":"a.go"}`), &issue))

	assert.Equal(t, "BUG", issue.Type)
	assert.Equal(t, json.Number("1"), issue.Fields["someField"])

	out, err := json.Marshal(issue)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"BUG","someField":1,"component":"a.go"}`, string(out))
}

func TestIssueRejectsNonStringType(t *testing.T) {
	var issue Issue
	err := json.Unmarshal([]byte(`{"type":7}`), &issue)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, `"type" must be a string`, verr.Error())
}

func TestMetricValueUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "number", input: `12`, want: 12},
		{name: "float", input: `1.5`, want: 1.5},
		{name: "numeric string", input: `"42"`, want: 42},
		{name: "garbage string", input: `"abc"`, wantErr: true},
		{name: "boolean", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v MetricValue
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				assert.EqualError(t, err, `"value" must be a number`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, float64(v))
		})
	}
}

func TestNewIssueCategoriesHasAllKeys(t *testing.T) {
	c := NewIssueCategories()
	assert.Len(t, c, 4)
	for _, category := range Categories {
		assert.NotNil(t, c[category], category)
		assert.Empty(t, c[category], category)
	}
}

func TestErrorMessages(t *testing.T) {
	missing := &MissingMetricError{Metrics: []string{"bugs", "vulnerabilities"}}
	assert.Equal(t, `Metrics "bugs,vulnerabilities" missing in SonarQube response`, missing.Error())

	cause := errors.New("connection refused")
	transport := &TransportError{System: "sonarqube", Endpoint: "/api/issues/search", Err: cause}
	assert.ErrorIs(t, transport, cause)

	failure := &OrchestrationFailure{Branch: "scan-results", Err: transport}
	var target *TransportError
	assert.True(t, errors.As(failure, &target))
	assert.Contains(t, failure.Error(), "scan-results branch failed")
}
