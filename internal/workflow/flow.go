package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisonhq/unison/internal/launch"
	"github.com/unisonhq/unison/internal/log"
	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
	"github.com/unisonhq/unison/internal/scan"
)

// PrepareOptions selects what to scan and how to run the job.
type PrepareOptions struct {
	Locations []scan.Location
	// OutputCatalog overrides where results land (Databricks family).
	OutputCatalog string
	// PolicyID optionally pins job clusters to a cluster policy.
	PolicyID string
	RunName  string
}

// Flow is one data-family variant of the setup workflow. Both variants
// share the phase shapes; they differ in how PREPARE scans and tags and in
// which artifact set READY_TO_LAUNCH uploads.
type Flow interface {
	Kind() provider.DataKind

	// Prepare scans, tags, builds and validates the manifest. The metadata
	// map travels in the session next to the manifest.
	Prepare(ctx context.Context, opts PrepareOptions) (*manifest.Manifest, map[string]any, error)

	// Launch prepares and submits the job for an approved manifest.
	Launch(ctx context.Context, m *manifest.Manifest, meta map[string]any) *launch.Result
}

// FlowConfig carries the collaborators and destination settings shared by
// both flow variants.
type FlowConfig struct {
	Scanner  *scan.Service
	Data     provider.DataProvider
	Compute  provider.ComputeProvider
	Launcher *launch.Launcher

	OutputPath string
	StagingDir string
	IAMRole    string
	PolicyID   string
	ClusterID  string
	// ExtraSettings rides into the manifest settings verbatim.
	ExtraSettings map[string]any
}

// DatabricksFlow scans one or more Unity Catalog locations, tags columns
// natively, and stages artifacts on volumes.
type DatabricksFlow struct {
	cfg FlowConfig
	// DefaultCatalog/DefaultSchema apply when no locations are given.
	DefaultCatalog string
	DefaultSchema  string
}

// NewDatabricksFlow builds the Databricks variant.
func NewDatabricksFlow(cfg FlowConfig, defaultCatalog, defaultSchema string) *DatabricksFlow {
	return &DatabricksFlow{cfg: cfg, DefaultCatalog: defaultCatalog, DefaultSchema: defaultSchema}
}

// Kind returns the variant tag.
func (f *DatabricksFlow) Kind() provider.DataKind { return provider.DataDatabricks }

// Prepare scans the requested locations (or the active catalog.schema when
// none are given), writes tags back, and assembles the manifest.
func (f *DatabricksFlow) Prepare(ctx context.Context, opts PrepareOptions) (*manifest.Manifest, map[string]any, error) {
	locations := opts.Locations
	if len(locations) == 0 {
		if f.DefaultCatalog == "" || f.DefaultSchema == "" {
			return nil, nil, fmt.Errorf("no scan target: set --catalog/--schema or configure an active catalog and schema")
		}
		locations = []scan.Location{{Catalog: f.DefaultCatalog, Schema: f.DefaultSchema}}
	}

	results, err := f.cfg.Scanner.ScanLocations(ctx, locations)
	if err != nil {
		return nil, nil, err
	}

	settings := baseSettings(f.cfg)
	if opts.OutputCatalog != "" {
		settings["output_catalog"] = opts.OutputCatalog
	}

	m, meta, err := assemble(results, settings)
	if err != nil {
		return nil, nil, err
	}
	if opts.PolicyID != "" {
		meta["policy_id"] = opts.PolicyID
	} else if f.cfg.PolicyID != "" {
		meta["policy_id"] = f.cfg.PolicyID
	}
	if opts.RunName != "" {
		meta["run_name"] = opts.RunName
	}

	writeTagsBack(ctx, f.cfg.Data, results, meta)
	return m, meta, nil
}

// Launch submits the job through the launch orchestrator.
func (f *DatabricksFlow) Launch(ctx context.Context, m *manifest.Manifest, meta map[string]any) *launch.Result {
	jobCfg := provider.JobConfig{
		RunName:    stringFrom(meta, "run_name"),
		OutputPath: f.cfg.OutputPath,
		StagingDir: f.cfg.StagingDir,
		PolicyID:   stringFrom(meta, "policy_id"),
	}
	return prepareAndLaunch(ctx, f.cfg, m, jobCfg)
}

// RedshiftFlow scans one schema of one database, stores tags in a private
// metadata table, and stages artifacts on S3.
type RedshiftFlow struct {
	cfg FlowConfig
	// Database/Schema are the fixed single target for this family.
	Database string
	Schema   string
}

// NewRedshiftFlow builds the Redshift variant.
func NewRedshiftFlow(cfg FlowConfig, database, schema string) *RedshiftFlow {
	return &RedshiftFlow{cfg: cfg, Database: database, Schema: schema}
}

// Kind returns the variant tag.
func (f *RedshiftFlow) Kind() provider.DataKind { return provider.DataRedshift }

// Prepare scans the configured schema and assembles the manifest with the
// Redshift staging settings.
func (f *RedshiftFlow) Prepare(ctx context.Context, opts PrepareOptions) (*manifest.Manifest, map[string]any, error) {
	location := scan.Location{Catalog: f.Database, Schema: f.Schema}
	if len(opts.Locations) > 0 {
		location = opts.Locations[0]
	}
	if location.Schema == "" {
		return nil, nil, fmt.Errorf("no scan target: configure a redshift schema")
	}

	results, err := f.cfg.Scanner.ScanLocations(ctx, []scan.Location{location})
	if err != nil {
		return nil, nil, err
	}

	m, meta, err := assemble(results, baseSettings(f.cfg))
	if err != nil {
		return nil, nil, err
	}
	if opts.RunName != "" {
		meta["run_name"] = opts.RunName
	}

	writeTagsBack(ctx, f.cfg.Data, results, meta)
	return m, meta, nil
}

// Launch submits the job through the launch orchestrator.
func (f *RedshiftFlow) Launch(ctx context.Context, m *manifest.Manifest, meta map[string]any) *launch.Result {
	jobCfg := provider.JobConfig{
		RunName:    stringFrom(meta, "run_name"),
		OutputPath: f.cfg.OutputPath,
		StagingDir: f.cfg.StagingDir,
		IAMRole:    f.cfg.IAMRole,
		ClusterID:  f.cfg.ClusterID,
	}
	return prepareAndLaunch(ctx, f.cfg, m, jobCfg)
}

func baseSettings(cfg FlowConfig) map[string]any {
	settings := map[string]any{
		"output_path": cfg.OutputPath,
		"staging_dir": cfg.StagingDir,
	}
	if cfg.IAMRole != "" {
		settings["iam_role"] = cfg.IAMRole
	}
	for k, v := range cfg.ExtraSettings {
		settings[k] = v
	}
	return settings
}

// assemble turns scan results into a validated manifest plus the session
// metadata describing the scan.
func assemble(results []scan.LocationResult, settings map[string]any) (*manifest.Manifest, map[string]any, error) {
	var tables []manifest.ScanTable
	summary := make([]string, 0, len(results))
	for _, r := range results {
		tables = append(tables, r.Tables...)
		line := fmt.Sprintf("%s.%s: %d tables, %d with sensitive columns", r.Catalog, r.Schema, len(r.Tables), r.TaggedCount())
		if r.Err != "" {
			line = fmt.Sprintf("%s.%s: scan failed: %s", r.Catalog, r.Schema, r.Err)
		}
		summary = append(summary, line)
	}

	m, unsupported := manifest.Build(tables, settings)
	if len(m.Tables) == 0 {
		return nil, nil, fmt.Errorf("no tables with sensitive columns found; nothing to process")
	}
	if ok, firstErr := manifest.ValidateManifest(m); !ok {
		return nil, nil, fmt.Errorf("built manifest is invalid: %s", firstErr)
	}

	meta := map[string]any{
		"scan_summary": strings.Join(summary, "\n"),
	}
	if len(unsupported) > 0 {
		names := make([]string, len(unsupported))
		for i, u := range unsupported {
			names[i] = u.Path
		}
		meta["unsupported_tables"] = names
	}
	return m, meta, nil
}

// writeTagsBack applies scan tags through the data provider. Failures are
// warnings in metadata, never fatal to preparation.
func writeTagsBack(ctx context.Context, data provider.DataProvider, results []scan.LocationResult, meta map[string]any) {
	logger := log.WithComponent("workflow")
	var warnings []string
	for _, r := range results {
		tags := scan.Tags(r)
		if len(tags) == 0 {
			continue
		}
		tagResult, err := data.TagColumns(ctx, tags, r.Catalog, r.Schema)
		if err != nil {
			logger.Warn("tag write-back failed", "location", r.Catalog+"."+r.Schema, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s.%s: %v", r.Catalog, r.Schema, err))
			continue
		}
		for _, te := range tagResult.Errors {
			warnings = append(warnings, fmt.Sprintf("%s.%s: %s", te.Table, te.Column, te.Message))
		}
	}
	if len(warnings) > 0 {
		meta["tag_warnings"] = warnings
	}
}

func prepareAndLaunch(ctx context.Context, cfg FlowConfig, m *manifest.Manifest, jobCfg provider.JobConfig) *launch.Result {
	prep, err := cfg.Compute.PrepareJob(ctx, m, cfg.Data, jobCfg)
	if err != nil {
		return &launch.Result{Message: fmt.Sprintf("job preparation failed: %v", err)}
	}
	return cfg.Launcher.Launch(ctx, prep)
}

func stringFrom(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return s
}
