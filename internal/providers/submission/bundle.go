// ABOUTME: Artifact packaging for submission API uploads.
// ABOUTME: Wraps JSON content in a zip archive and a multipart form body.

package submission

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
)

// BundleArtifact returns a zip archive holding content as <name>.json. JSON
// content is indented for readability; anything else is stored as is.
func BundleArtifact(name string, content []byte) ([]byte, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, content, "", "  "); err == nil {
		content = pretty.Bytes()
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	f, err := zw.Create(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := f.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	return buf.Bytes(), nil
}

func multipartArtifact(filename string, archive []byte, typeID string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("typeId", typeID); err != nil {
		return nil, "", fmt.Errorf("failed to write typeId field: %w", err)
	}

	part, err := mw.CreateFormFile("artifact", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create artifact part: %w", err)
	}
	if _, err := part.Write(archive); err != nil {
		return nil, "", fmt.Errorf("failed to write artifact part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}
