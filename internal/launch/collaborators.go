package launch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPInitScriptFetcher downloads the bootstrap script from a fixed URL.
type HTTPInitScriptFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPInitScriptFetcher builds a fetcher with a 30s timeout client.
func NewHTTPInitScriptFetcher(url string) *HTTPInitScriptFetcher {
	return &HTTPInitScriptFetcher{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the script.
func (f *HTTPInitScriptFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("no init script url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build init script request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch init script: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch init script: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// HTTPLinkageRecorder posts the job/run mapping to a tracker endpoint.
type HTTPLinkageRecorder struct {
	URL    string
	Client *http.Client
}

// NewHTTPLinkageRecorder builds a recorder with a 10s timeout client.
func NewHTTPLinkageRecorder(url string) *HTTPLinkageRecorder {
	return &HTTPLinkageRecorder{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Record posts the mapping.
func (r *HTTPLinkageRecorder) Record(ctx context.Context, jobID, runID string) error {
	if r.URL == "" {
		return fmt.Errorf("no tracker url configured")
	}
	body, err := json.Marshal(map[string]string{"job_id": jobID, "run_id": runID})
	if err != nil {
		return fmt.Errorf("marshal linkage: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build linkage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("record linkage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record linkage: unexpected status %s", resp.Status)
	}
	return nil
}
