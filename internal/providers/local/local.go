// ABOUTME: Local filesystem artifact store for development and testing purposes.
// ABOUTME: Writes scan result artifacts under a directory without cloud API dependencies.

package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalArtifactStore implements ArtifactStore on the local filesystem
type LocalArtifactStore struct {
	dir    string
	logger *logrus.Logger
}

// NewLocalArtifactStore creates a new filesystem artifact store rooted at dir
func NewLocalArtifactStore(dir string, logger *logrus.Logger) *LocalArtifactStore {
	return &LocalArtifactStore{
		dir:    dir,
		logger: logger,
	}
}

// Name returns the store name
func (l *LocalArtifactStore) Name() string {
	return "local"
}

// ArtifactPath returns where an artifact is written
func (l *LocalArtifactStore) ArtifactPath(submissionID, name string) string {
	return filepath.Join(l.dir, submissionID, name+".json")
}

// PutArtifact writes the artifact, replacing any previous version
func (l *LocalArtifactStore) PutArtifact(ctx context.Context, submissionID, name string, content []byte) error {
	if err := checkPathElement("submission id", submissionID); err != nil {
		return err
	}
	if err := checkPathElement("artifact name", name); err != nil {
		return err
	}

	path := l.ArtifactPath(submissionID, name)
	logger := l.logger.WithFields(logrus.Fields{
		"operation": "put_artifact_local",
		"path":      path,
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	// Write to a temporary file first so readers never see a partial artifact
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact '%s': %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place '%s': %w", path, err)
	}

	logger.WithField("size", len(content)).Info("Wrote artifact to local store")
	return nil
}

func checkPathElement(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", what)
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return fmt.Errorf("invalid %s: %q", what, value)
	}
	return nil
}
