package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unisonhq/unison/internal/manifest"
)

// Editor applies a free-text modification request to a manifest. A failed
// edit leaves the caller's manifest untouched.
type Editor interface {
	Edit(ctx context.Context, m *manifest.Manifest, request string) (*manifest.Manifest, error)
}

// HTTPEditor sends edit requests to the natural-language config editor
// service.
type HTTPEditor struct {
	URL    string
	Client *http.Client
}

// NewHTTPEditor builds an editor client with a 60s timeout.
func NewHTTPEditor(url string) *HTTPEditor {
	return &HTTPEditor{URL: url, Client: &http.Client{Timeout: 60 * time.Second}}
}

type editRequest struct {
	Manifest *manifest.Manifest `json:"manifest"`
	Request  string             `json:"request"`
}

type editResponse struct {
	Manifest *manifest.Manifest `json:"manifest"`
	Error    string             `json:"error"`
}

// Edit posts the manifest and request; the reply carries the modified
// manifest.
func (e *HTTPEditor) Edit(ctx context.Context, m *manifest.Manifest, request string) (*manifest.Manifest, error) {
	if e.URL == "" {
		return nil, fmt.Errorf("no editor url configured")
	}

	body, err := json.Marshal(editRequest{Manifest: m, Request: request})
	if err != nil {
		return nil, fmt.Errorf("marshal edit request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build edit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edit request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read edit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("editor returned status %s", resp.Status)
	}

	var reply editResponse
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode edit response: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("editor rejected request: %s", reply.Error)
	}
	if reply.Manifest == nil {
		return nil, fmt.Errorf("editor returned no manifest")
	}
	return reply.Manifest, nil
}
