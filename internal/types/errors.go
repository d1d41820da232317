// ABOUTME: Error taxonomy shared by the scan retrieval and orchestration pipeline.
// ABOUTME: Lets the HTTP entry point classify failures without string matching.

package types

import (
	"fmt"
	"strings"
)

// ValidationError reports the first field of an event or API response that
// does not have the expected shape
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MissingMetricError lists every recognized metric absent from a measures response
type MissingMetricError struct {
	Metrics []string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("Metrics %q missing in SonarQube response", strings.Join(e.Metrics, ","))
}

// TransportError wraps a network or HTTP failure talking to an external system
type TransportError struct {
	System     string
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request to %s failed with status %d: %v", e.System, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request to %s failed: %v", e.System, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OrchestrationFailure reports which concurrent branch of event processing failed.
// Side effects already committed by the other branch are not undone.
type OrchestrationFailure struct {
	Branch string
	Err    error
}

func (e *OrchestrationFailure) Error() string {
	return fmt.Sprintf("%s branch failed: %v", e.Branch, e.Err)
}

func (e *OrchestrationFailure) Unwrap() error {
	return e.Err
}
