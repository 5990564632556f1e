// Package databricks implements the Databricks variants of the provider
// families: Unity Catalog data access, jobs compute, and volumes storage.
package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unisonhq/unison/internal/provider"
)

// Client is a thin REST client for the workspace APIs this tool needs.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds a client for the given workspace.
func NewClient(workspaceURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(workspaceURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// doJSON performs a JSON request/response round trip. Transport failures
// come back as RemoteError; non-2xx responses as BackendError carrying the
// workspace's error message.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &provider.RemoteError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &provider.RemoteError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		reason := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			reason = apiErr.Message
		}
		return &provider.BackendError{Op: method + " " + path, Reason: reason}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response for %s: %w", path, err)
		}
	}
	return nil
}

// UploadFile writes content to a workspace files path (volumes included).
func (c *Client) UploadFile(ctx context.Context, path string, content []byte, overwrite bool) error {
	endpoint := fmt.Sprintf("%s/api/2.0/fs/files%s?overwrite=%t", c.baseURL, path, overwrite)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &provider.RemoteError{Op: "PUT " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &provider.BackendError{Op: "PUT " + path, Reason: strings.TrimSpace(string(data))}
	}
	return nil
}
