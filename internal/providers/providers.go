// ABOUTME: Provider set used by the relay engine and the shared metrics contract.
// ABOUTME: Groups the scan result source, submission forwarder, and artifact store.

package providers

import (
	"github.com/jfeddern/ScanRelay/internal/engine"
	"github.com/jfeddern/ScanRelay/internal/providers/sonarqube"
	"github.com/jfeddern/ScanRelay/internal/providers/submission"
)

// Recorder receives statistics from every provider
type Recorder interface {
	sonarqube.Recorder
	submission.Recorder
}

// Providers holds the providers wired into one engine
type Providers struct {
	Source    engine.ScanResultSource
	Forwarder engine.SubmissionForwarder
	Store     engine.ArtifactStore
}

// Names returns the provider names for startup logging
func (p *Providers) Names() map[string]string {
	return map[string]string{
		"source":    p.Source.Name(),
		"forwarder": p.Forwarder.Name(),
		"store":     p.Store.Name(),
	}
}
