// Package lockclient wraps the external named-resource lock service:
// single and bulk acquire/release of read or write locks over resource
// keys.
package lockclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
)

// Client talks to the lock service's resource/lock (single) and
// resource/lock/bulk (all-or-nothing) endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a lock client against baseURL (e.g. http://lock-service).
// Lock calls can be held up behind very long finalize runs, hence the
// one-hour ceiling.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Hour},
	}
}

type lockRequest struct {
	ResourceKey string `json:"resource_key"`
	Operation   string `json:"operation"`
}

type bulkLockRequest struct {
	ResourceKeys []string `json:"resource_keys"`
	Operation    string   `json:"operation"`
}

// Acquire locks a single resource key for operation ("read" or "write").
// Contention (any status other than 200) surfaces as
// apierrors.ResourceAlreadyInUsed.
func (c *Client) Acquire(ctx context.Context, resourceKey, operation string) error {
	return c.do(ctx, http.MethodPost, "resource/lock/", lockRequest{ResourceKey: resourceKey, Operation: operation}, resourceKey)
}

// Release unlocks a single resource key.
func (c *Client) Release(ctx context.Context, resourceKey, operation string) error {
	return c.do(ctx, http.MethodDelete, "resource/lock/", lockRequest{ResourceKey: resourceKey, Operation: operation}, resourceKey)
}

// AcquireBulk locks every key in resourceKeys, all-or-nothing: the lock
// service rejects the whole batch if any key is already held.
func (c *Client) AcquireBulk(ctx context.Context, resourceKeys []string, operation string) error {
	return c.do(ctx, http.MethodPost, "resource/lock/bulk", bulkLockRequest{ResourceKeys: resourceKeys, Operation: operation}, fmt.Sprint(resourceKeys))
}

// ReleaseBulk unlocks every key in resourceKeys in one request.
func (c *Client) ReleaseBulk(ctx context.Context, resourceKeys []string, operation string) error {
	return c.do(ctx, http.MethodDelete, "resource/lock/bulk", bulkLockRequest{ResourceKeys: resourceKeys, Operation: operation}, fmt.Sprint(resourceKeys))
}

func (c *Client) do(ctx context.Context, method, path string, body any, keyDescription string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("lockclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("lockclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lockclient: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return apierrors.ResourceAlreadyInUsed("resource %s already in used", keyDescription)
	}
	return nil
}
