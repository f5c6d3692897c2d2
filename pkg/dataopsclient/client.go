// Package dataopsclient wraps the dataops service's archive-preview
// endpoint, which stores a zip upload's directory listing for browsing
// without a download.
package dataopsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the dataops service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a dataops client against baseURL. The generous timeout
// tolerates very large zip archives.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: time.Hour}}
}

// ArchivePreview is the payload POSTed to the archive endpoint once a
// .zip upload's directory structure has been walked.
type ArchivePreview struct {
	ArchivePreview map[string]any `json:"archive_preview"`
	FileID         string         `json:"file_id"`
}

// PostArchivePreview registers preview's nested directory map against the
// finalized file entity.
func (c *Client) PostArchivePreview(ctx context.Context, preview ArchivePreview) error {
	body, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("dataopsclient: marshal archive preview: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/archive", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dataopsclient: build archive preview request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dataopsclient: archive preview request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dataopsclient: archive preview returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
