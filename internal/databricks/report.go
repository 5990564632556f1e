package databricks

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// ReportGenerator writes a follow-up notebook into the workspace after a
// successful submission, so users can inspect results from the UI.
type ReportGenerator struct {
	client *Client
	// BasePath is the workspace directory reports land in.
	BasePath string
}

// NewReportGenerator wraps a workspace client.
func NewReportGenerator(client *Client) *ReportGenerator {
	return &ReportGenerator{client: client, BasePath: "/Shared/unison"}
}

const reportSource = `# Databricks notebook source
# MAGIC %%md
# MAGIC # Identity resolution run %s
# MAGIC
# MAGIC Run id: %s
# MAGIC
# MAGIC Query the output table once the run completes.
`

// Generate imports the report notebook and returns its workspace path.
func (g *ReportGenerator) Generate(ctx context.Context, jobID, runID string) (string, error) {
	path := fmt.Sprintf("%s/%s-report", g.BasePath, jobID)
	source := fmt.Sprintf(reportSource, jobID, runID)

	body := map[string]any{
		"path":      path,
		"format":    "SOURCE",
		"language":  "PYTHON",
		"overwrite": true,
		"content":   base64.StdEncoding.EncodeToString([]byte(source)),
	}
	if err := g.client.doJSON(ctx, http.MethodPost, "/api/2.0/workspace/import", nil, body, nil); err != nil {
		return "", fmt.Errorf("import report notebook: %w", err)
	}
	return path, nil
}
