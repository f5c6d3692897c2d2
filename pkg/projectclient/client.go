// Package projectclient checks project existence against the project
// registry service.
package projectclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
)

// Client talks to the project registry service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a project client against baseURL.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Project is the subset of project-registry fields the coordinator needs.
type Project struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Get fetches the project by code, returning apierrors.NotFound when the
// project does not exist.
func (c *Client) Get(ctx context.Context, code string) (*Project, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/projects/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("projectclient: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("projectclient: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierrors.NotFound("project %s does not exist", code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("projectclient: get %s returned %d", code, resp.StatusCode)
	}

	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("projectclient: decode response: %w", err)
	}
	return &project, nil
}

// Exists is a convenience wrapper returning just whether code resolves.
func (c *Client) Exists(ctx context.Context, code string) (bool, error) {
	_, err := c.Get(ctx, code)
	if err != nil {
		if ae, ok := apierrors.As(err); ok && ae.Kind == apierrors.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
