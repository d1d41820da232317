// ABOUTME: Tests for the local filesystem artifact store.
// ABOUTME: Tests artifact layout, overwrites, and rejected path elements.

package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) (*LocalArtifactStore, string) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	dir := t.TempDir()
	return NewLocalArtifactStore(dir, logger), dir
}

func TestLocalArtifactStoreName(t *testing.T) {
	store, _ := newTestStore(t)

	if store.Name() != "local" {
		t.Errorf("Expected name 'local', got '%s'", store.Name())
	}
}

func TestLocalArtifactStorePutArtifact(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	content := []byte(`{"project_key":"test-project"}`)
	if err := store.PutArtifact(ctx, "test-project", "SonarQubeScanResults", content); err != nil {
		t.Fatalf("PutArtifact() error = %v", err)
	}

	path := filepath.Join(dir, "test-project", "SonarQubeScanResults.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("Expected content %s, got %s", content, data)
	}

	// Overwrites replace the previous artifact
	if err := store.PutArtifact(ctx, "test-project", "SonarQubeScanResults", []byte(`{}`)); err != nil {
		t.Fatalf("PutArtifact() overwrite error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "{}" {
		t.Errorf("Expected overwritten content {}, got %s", data)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "test-project"))
	if err != nil {
		t.Fatalf("Failed to list artifact directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 file after overwrite, got %d", len(entries))
	}
}

func TestLocalArtifactStoreRejectsInvalidNames(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name         string
		submissionID string
		artifact     string
	}{
		{"empty submission", "", "SonarQubeScanResults"},
		{"traversal", "..", "SonarQubeScanResults"},
		{"nested submission", "a/b", "SonarQubeScanResults"},
		{"windows separator", `a\b`, "SonarQubeScanResults"},
		{"empty artifact", "test-project", " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.PutArtifact(context.Background(), tt.submissionID, tt.artifact, []byte(`{}`)); err == nil {
				t.Errorf("Expected error for submission %q artifact %q", tt.submissionID, tt.artifact)
			}
		})
	}
}

func TestLocalArtifactStoreUnwritableDir(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewLocalArtifactStore(file, logger)
	if err := store.PutArtifact(context.Background(), "test-project", "SonarQubeScanResults", []byte(`{}`)); err == nil {
		t.Error("Expected error when the store root is a file")
	}
}
