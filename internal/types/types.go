// ABOUTME: Common types shared across the ScanRelay system.
// ABOUTME: Defines the inbound scan event, issues, aggregated scan results, and review payloads.

package types

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Issue categories recognized in quality-analysis responses, in classification order
const (
	CategoryCodeSmells       = "code_smells"
	CategoryBugs             = "bugs"
	CategoryVulnerabilities  = "vulnerabilities"
	CategorySecurityHotspots = "security_hotspots"
)

// Categories lists every recognized metric/issue category
var Categories = []string{
	CategoryCodeSmells,
	CategoryBugs,
	CategoryVulnerabilities,
	CategorySecurityHotspots,
}

// ScanEvent is the webhook payload sent by the quality-analysis server when a scan completes
type ScanEvent struct {
	ServerURL   string       `json:"serverUrl" validate:"required,url"`
	Status      string       `json:"status" validate:"required"`
	AnalysedAt  string       `json:"analysedAt" validate:"required"`
	Project     *Project     `json:"project" validate:"required"`
	QualityGate *QualityGate `json:"qualityGate" validate:"required"`

	// Raw holds the original request body, unknown fields included
	Raw json.RawMessage `json:"-"`
}

// Project identifies the analysed project; its key doubles as the submission id
type Project struct {
	Key  string `json:"key" validate:"required"`
	Name string `json:"name,omitempty"`
}

// QualityGate carries the pass/fail verdict of a scan
type QualityGate struct {
	Status string `json:"status" validate:"required"`
	Name   string `json:"name,omitempty"`
}

// Measures maps a recognized category to the latest metric value
type Measures map[string]float64

// IssueCategories maps a recognized category to its issues in source order
type IssueCategories map[string][]Issue

// NewIssueCategories returns a map holding an empty slice for every category
func NewIssueCategories() IssueCategories {
	c := make(IssueCategories, len(Categories))
	for _, category := range Categories {
		c[category] = []Issue{}
	}
	return c
}

// Issue is a single quality-analysis issue. Only Type is interpreted; every
// other field is kept so it can be forwarded untouched.
type Issue struct {
	Type   string         `json:"type" validate:"required"`
	Fields map[string]any `json:"-" validate:"-"`
}

// UnmarshalJSON keeps all fields of the issue object and extracts its type
func (i *Issue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &ValidationError{Field: "issues", Message: `"issues" must contain objects`}
	}

	fields := make(map[string]any)
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return &ValidationError{Field: "issues", Message: `"issues" must contain objects`}
	}

	i.Fields = fields
	i.Type = ""
	if raw, ok := fields["type"]; ok {
		typ, ok := raw.(string)
		if !ok {
			return &ValidationError{Field: "type", Message: `"type" must be a string`}
		}
		i.Type = typ
	}
	return nil
}

// MarshalJSON writes the issue back out with all of its original fields
func (i Issue) MarshalJSON() ([]byte, error) {
	if i.Fields == nil {
		return json.Marshal(map[string]any{"type": i.Type})
	}
	return json.Marshal(i.Fields)
}

// MetricValue is a metric history value. The server reports these as strings,
// so both JSON numbers and numeric strings are accepted.
type MetricValue float64

// UnmarshalJSON accepts 12, 12.5 and "12"
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return &ValidationError{Field: "value", Message: `"value" must be a number`}
		}
		s = unquoted
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &ValidationError{Field: "value", Message: `"value" must be a number`}
	}
	*v = MetricValue(f)
	return nil
}

// ScanResult is the aggregated artifact forwarded downstream for one analysis
type ScanResult struct {
	ProjectKey string          `json:"project_key"`
	ScanTime   string          `json:"scan_time"`
	Measures   Measures        `json:"measures"`
	Issues     IssueCategories `json:"issues"`
}

// ReviewStatusPayload is the review created in the submission API for a scan
type ReviewStatusPayload struct {
	Score        int    `json:"score" validate:"oneof=0 100"`
	ReviewerID   string `json:"reviewerId" validate:"required"`
	SubmissionID string `json:"submissionId" validate:"required"`
	ScoreCardID  string `json:"scoreCardId" validate:"required"`
}
