// Package launch sequences a prepared job into a running one: upload
// artifacts, submit, record linkage, report. Steps (a)-(c) are fatal,
// (d)-(e) are best-effort.
package launch

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisonhq/unison/internal/artifact"
	"github.com/unisonhq/unison/internal/history"
	"github.com/unisonhq/unison/internal/jobcache"
	"github.com/unisonhq/unison/internal/log"
	"github.com/unisonhq/unison/internal/provider"
)

// InitScriptFetcher fetches the platform bootstrap script.
type InitScriptFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// LinkageRecorder records the job-id to run-id mapping with an external
// tracker.
type LinkageRecorder interface {
	Record(ctx context.Context, jobID, runID string) error
}

// ReportGenerator produces a human-facing follow-up artifact after a
// successful submission and returns its path.
type ReportGenerator interface {
	Generate(ctx context.Context, jobID, runID string) (string, error)
}

// Result is the single structured outcome of a launch attempt.
type Result struct {
	Success        bool
	JobID          string
	RunID          string
	ManifestPath   string
	InitScriptPath string
	ReportPath     string
	// Message is a human-readable multi-line summary assembled from
	// whichever steps completed.
	Message string
}

// Launcher drives the launch sequence.
type Launcher struct {
	compute  provider.ComputeProvider
	storage  *artifact.Selector
	fetcher  InitScriptFetcher
	recorder LinkageRecorder
	reporter ReportGenerator
	cache    *jobcache.Cache
	ledger   *history.Ledger
	dataKind provider.DataKind
}

// Options wires the launcher's collaborators. Recorder, reporter and ledger
// may be nil; their steps are skipped.
type Options struct {
	Compute  provider.ComputeProvider
	Storage  *artifact.Selector
	Fetcher  InitScriptFetcher
	Recorder LinkageRecorder
	Reporter ReportGenerator
	Cache    *jobcache.Cache
	Ledger   *history.Ledger
	// DataKind tags history rows with the active data family.
	DataKind provider.DataKind
}

// New builds a launcher.
func New(opts Options) *Launcher {
	return &Launcher{
		compute:  opts.Compute,
		storage:  opts.Storage,
		fetcher:  opts.Fetcher,
		recorder: opts.Recorder,
		reporter: opts.Reporter,
		cache:    opts.Cache,
		ledger:   opts.Ledger,
		dataKind: opts.DataKind,
	}
}

// Launch runs the sequence for one Preparation. The returned Result always
// carries whatever identifiers and paths were produced before any failure.
func (l *Launcher) Launch(ctx context.Context, prep *provider.Preparation) *Result {
	logger := log.WithComponent("launch")
	result := &Result{}

	if prep == nil || prep.Err != nil {
		result.Message = provider.ErrPreparationFailed.Error()
		return result
	}
	result.JobID = prep.JobID
	result.ManifestPath = prep.ManifestPath
	result.InitScriptPath = prep.InitScriptPath
	logger = logger.With("job_id", prep.JobID)

	// (a) manifest upload, fatal.
	manifestJSON, err := prep.Manifest.JSON()
	if err != nil {
		result.Message = fmt.Sprintf("launch aborted: serialize manifest: %v", err)
		return result
	}
	if err := l.storage.Upload(ctx, manifestJSON, prep.ManifestPath, true); err != nil {
		result.Message = fmt.Sprintf("launch aborted: upload manifest: %v", err)
		l.record(ctx, result, "failed", result.Message)
		return result
	}

	// (b) init script fetch + upload, fatal.
	script, err := l.fetcher.Fetch(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("launch aborted: fetch init script: %v", err)
		l.record(ctx, result, "failed", result.Message)
		return result
	}
	if err := l.storage.Upload(ctx, script, prep.InitScriptPath, true); err != nil {
		result.Message = fmt.Sprintf("launch aborted: upload init script: %v", err)
		l.record(ctx, result, "failed", result.Message)
		return result
	}

	// (c) submit; a reply without a run id is a failure even when the call
	// itself succeeded.
	outcome, err := l.compute.LaunchJob(ctx, prep)
	if err != nil {
		result.Message = fmt.Sprintf("launch failed: %v", err)
		l.record(ctx, result, "failed", result.Message)
		return result
	}
	if outcome == nil || outcome.RunID == "" {
		result.Message = "launch failed: backend returned no run id"
		l.record(ctx, result, "failed", result.Message)
		return result
	}
	result.Success = true
	result.RunID = outcome.RunID
	logger.Info("job submitted", "run_id", outcome.RunID)

	// (d) best-effort linkage recording; never fails the launch.
	if l.recorder != nil {
		if err := l.recorder.Record(ctx, prep.JobID, outcome.RunID); err != nil {
			logger.Warn("linkage recorder failed", "error", err)
		}
	}
	if l.cache != nil {
		if err := l.cache.Add(prep.JobID, outcome.RunID); err != nil {
			logger.Warn("job cache write failed", "error", err)
		}
	}
	l.record(ctx, result, "launched", "")

	// (e) best-effort report; failure degrades the message only.
	var reportNote string
	if l.reporter != nil {
		path, err := l.reporter.Generate(ctx, prep.JobID, outcome.RunID)
		if err != nil {
			logger.Warn("report generation failed", "error", err)
			reportNote = fmt.Sprintf("warning: report generation failed: %v", err)
		} else {
			result.ReportPath = path
		}
	}

	result.Message = l.summary(result, reportNote)
	return result
}

func (l *Launcher) record(ctx context.Context, r *Result, status, errMsg string) {
	if l.ledger == nil {
		return
	}
	_, err := l.ledger.RecordLaunch(ctx, history.Entry{
		JobID:        r.JobID,
		RunID:        r.RunID,
		DataKind:     string(l.dataKind),
		ComputeKind:  string(l.compute.Kind()),
		Status:       status,
		Error:        errMsg,
		ManifestPath: r.ManifestPath,
	})
	if err != nil {
		log.WithComponent("launch").Warn("history write failed", "error", err)
	}
}

func (l *Launcher) summary(r *Result, reportNote string) string {
	lines := []string{
		"Job submitted.",
		"  job id:      " + r.JobID,
		"  run id:      " + r.RunID,
		"  manifest:    " + r.ManifestPath,
		"  init script: " + r.InitScriptPath,
	}
	if r.ReportPath != "" {
		lines = append(lines, "  report:      "+r.ReportPath)
	}
	if reportNote != "" {
		lines = append(lines, reportNote)
	}
	lines = append(lines, "Check progress with: unison job-status --job-id "+r.JobID)
	return strings.Join(lines, "\n")
}
