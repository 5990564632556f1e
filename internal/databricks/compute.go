package databricks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
)

// ComputeProvider runs jobs on Databricks job clusters via one-time run
// submission.
type ComputeProvider struct {
	client *Client
}

// NewComputeProvider wraps a workspace client.
func NewComputeProvider(client *Client) *ComputeProvider {
	return &ComputeProvider{client: client}
}

// Kind returns the variant tag.
func (p *ComputeProvider) Kind() provider.ComputeKind { return provider.ComputeDatabricks }

// PrepareJob resolves artifact paths under the staging volume and assembles
// the runs/submit payload. No remote calls happen here; uploads and
// submission are sequenced by the launch orchestrator.
func (p *ComputeProvider) PrepareJob(ctx context.Context, m *manifest.Manifest, data provider.DataProvider, cfg provider.JobConfig) (*provider.Preparation, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is nil")
	}
	if cfg.StagingDir == "" {
		return nil, &provider.ConfigError{Provider: string(provider.ComputeDatabricks), Missing: []string{"staging_dir"}}
	}

	jobID := newJobID()
	runName := cfg.RunName
	if runName == "" {
		runName = jobID
	}

	manifestPath := path.Join(cfg.StagingDir, jobID, "manifest.json")
	initScriptPath := path.Join(cfg.StagingDir, jobID, "init.sh")

	cluster := map[string]any{
		"spark_version": "15.4.x-scala2.12",
		"node_type_id":  "i3.xlarge",
		"num_workers":   2,
		"init_scripts": []map[string]any{
			{"volumes": map[string]any{"destination": initScriptPath}},
		},
	}
	if cfg.PolicyID != "" {
		cluster["policy_id"] = cfg.PolicyID
	}

	payload := map[string]any{
		"run_name": runName,
		"tasks": []map[string]any{
			{
				"task_key":    "unison",
				"new_cluster": cluster,
				"spark_python_task": map[string]any{
					"python_file": path.Join(cfg.StagingDir, jobID, "run.py"),
					"parameters":  []string{"--manifest", manifestPath, "--output", cfg.OutputPath},
				},
			},
		},
	}

	return &provider.Preparation{
		JobID:          jobID,
		RunName:        runName,
		Manifest:       m,
		ManifestPath:   manifestPath,
		InitScriptPath: initScriptPath,
		Payload:        payload,
	}, nil
}

// submitResponse is the runs/submit reply.
type submitResponse struct {
	RunID int64 `json:"run_id"`
}

type runStatusResponse struct {
	JobID int64 `json:"job_id"`
	State struct {
		LifeCycleState string `json:"life_cycle_state"`
		ResultState    string `json:"result_state"`
		StateMessage   string `json:"state_message"`
	} `json:"state"`
}

// LaunchJob submits the prepared one-time run. A Preparation that failed
// preparation is refused outright.
func (p *ComputeProvider) LaunchJob(ctx context.Context, prep *provider.Preparation) (*provider.LaunchOutcome, error) {
	if prep == nil || prep.Err != nil {
		return nil, provider.ErrPreparationFailed
	}

	var resp submitResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/api/2.2/jobs/runs/submit", nil, prep.Payload, &resp); err != nil {
		return nil, err
	}
	if resp.RunID == 0 {
		return nil, &provider.BackendError{Op: "runs/submit", Reason: "response carried no run_id"}
	}
	return &provider.LaunchOutcome{
		RunID: strconv.FormatInt(resp.RunID, 10),
		JobID: prep.JobID,
	}, nil
}

// GetJobStatus reports the lifecycle and result state of a run.
func (p *ComputeProvider) GetJobStatus(ctx context.Context, id string) (*provider.JobStatus, error) {
	q := url.Values{"run_id": {id}}
	var resp runStatusResponse
	if err := p.client.doJSON(ctx, http.MethodGet, "/api/2.2/jobs/runs/get", q, nil, &resp); err != nil {
		return nil, err
	}
	return &provider.JobStatus{
		State:   resp.State.LifeCycleState,
		Result:  resp.State.ResultState,
		Message: resp.State.StateMessage,
	}, nil
}

// CancelJob cancels a run.
func (p *ComputeProvider) CancelJob(ctx context.Context, id string) error {
	runID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("run id %q is not numeric: %w", id, err)
	}
	body := map[string]any{"run_id": runID}
	return p.client.doJSON(ctx, http.MethodPost, "/api/2.2/jobs/runs/cancel", nil, body, nil)
}

func newJobID() string {
	return "unison-" + uuid.NewString()
}
