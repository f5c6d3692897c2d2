// Package catalog wraps the metadata catalog service: item search,
// folder batch-create, and file registration.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the metadata service's item catalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a catalog client against baseURL.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Item is a single row of the metadata catalog's item tree (a file or a
// folder node).
type Item struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ParentPath     string   `json:"parent_path"`
	Parent         string   `json:"parent"`
	Type           string   `json:"type"`
	Zone           int      `json:"zone"`
	Size           int64    `json:"size"`
	Owner          string   `json:"owner"`
	ContainerCode  string   `json:"container_code"`
	ContainerType  string   `json:"container_type"`
	LocationURI    string   `json:"location_uri"`
	VersionID      string   `json:"version,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// SearchParams narrows an item search to a single name under a parent path.
type SearchParams struct {
	ParentPath    string
	Name          string
	ContainerCode string
	Zone          int
	Archived      bool
	Recursive     bool
}

// Search returns the items matching params. An empty result means no
// conflicting name exists at that path.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Item, error) {
	q := url.Values{}
	q.Set("parent_path", params.ParentPath)
	q.Set("name", params.Name)
	q.Set("container_code", params.ContainerCode)
	q.Set("zone", strconv.Itoa(params.Zone))
	q.Set("archived", strconv.FormatBool(params.Archived))
	q.Set("recursive", strconv.FormatBool(params.Recursive))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items/search/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog: search returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Result []Item `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode search response: %w", err)
	}
	return payload.Result, nil
}

// BatchCreate creates every item in items in one call, used to materialize
// the folders a new folder-tree upload path requires. link_container stays
// false: the folder nodes link to their parent folder, not the project root.
func (c *Client) BatchCreate(ctx context.Context, items []Item, zone int) error {
	body, err := json.Marshal(map[string]any{"items": items, "zone": zone, "link_container": false})
	if err != nil {
		return fmt.Errorf("catalog: marshal batch create: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/items/batch/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("catalog: build batch create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: batch create request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("catalog: batch create returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// FileRecord is the payload CreateFile posts to filedata/.
type FileRecord struct {
	Uploader         string   `json:"uploader"`
	FileName         string   `json:"file_name"`
	Path             string   `json:"path"`
	FileSize         int64    `json:"file_size"`
	Description      string   `json:"description"`
	Namespace        string   `json:"namespace"`
	ProjectCode      string   `json:"project_code"`
	Labels           []string `json:"labels"`
	ParentFolderGEID string   `json:"parent_folder_geid"`
	Bucket           string   `json:"bucket"`
	ObjectPath       string   `json:"minio_object_path"`
	VersionID        string   `json:"version_id"`
	Operator         string   `json:"operator,omitempty"`
	ProcessPipeline  string   `json:"process_pipeline,omitempty"`
	ParentQuery      []string `json:"parent_query,omitempty"`
	DcmID            string   `json:"dcm_id,omitempty"`
}

// CreateFile registers the finalized object as a file node in the catalog.
// The created Item is unwrapped from the service's {result: {...}} envelope;
// its ID is the global entity id the finalizer threads into the activity log
// and the job's source_geid payload.
func (c *Client) CreateFile(ctx context.Context, record FileRecord) (*Item, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal file record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/filedata/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: build create file request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: create file request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog: create file returned %d: %s", resp.StatusCode, respBody)
	}

	var payload struct {
		Result Item `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode create file response: %w", err)
	}
	return &payload.Result, nil
}
