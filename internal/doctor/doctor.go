// Package doctor validates unison configuration and provider connectivity.
package doctor

import (
	"context"
	"fmt"

	"github.com/unisonhq/unison/internal/config"
	"github.com/unisonhq/unison/internal/provider"
	"github.com/unisonhq/unison/internal/registry"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration and probes the resolved providers.
type Doctor struct {
	cfg     *config.Config
	factory *registry.Factory
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config, factory *registry.Factory) *Doctor {
	return &Doctor{cfg: cfg, factory: factory}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	dataKind := d.validateResolution(r)
	d.validateProviderConfig(r, dataKind)
	d.validateDestinations(r)
	d.checkConnectivity(ctx, r, dataKind)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateResolution resolves the active provider families.
func (d *Doctor) validateResolution(r *Result) provider.DataKind {
	dataKind, err := d.factory.ResolveDataKind("")
	if err != nil {
		d.addError(r, "providers", "data_provider", err.Error())
		return ""
	}
	if _, err := d.factory.ResolveComputeKind("", dataKind); err != nil {
		d.addError(r, "providers", "compute_provider", err.Error())
	}
	return dataKind
}

// validateProviderConfig constructs the providers so every missing required
// field is reported.
func (d *Doctor) validateProviderConfig(r *Result, dataKind provider.DataKind) {
	if dataKind == "" {
		return
	}
	if _, err := d.factory.DataProvider(dataKind); err != nil {
		d.addError(r, "providers", string(dataKind), err.Error())
	}
	computeKind, err := d.factory.ResolveComputeKind("", dataKind)
	if err != nil {
		return
	}
	if _, err := d.factory.ComputeProvider(computeKind); err != nil {
		d.addError(r, "providers", string(computeKind), err.Error())
	}
}

// validateDestinations checks the output and staging destinations are set
// and routable to a storage backend.
func (d *Doctor) validateDestinations(r *Result) {
	sel := d.factory.StorageSelector()
	check := func(field, path string) {
		if path == "" {
			d.addError(r, "destinations", field, field+" is required")
			return
		}
		if _, err := sel.ForPath(path); err != nil {
			d.addError(r, "destinations", field, err.Error())
		}
	}

	outputPath, stagingDir := d.cfg.ArtifactPaths()
	check("output_path", outputPath)
	check("staging_dir", stagingDir)

	if d.cfg.InitScriptURL == "" {
		d.addWarning(r, "destinations", "init_script_url", "no init script url configured; launches will fail")
	}
	if d.cfg.EditorURL == "" {
		d.addWarning(r, "destinations", "editor_url", "no editor url configured; manifest edits are unavailable")
	}
}

// checkConnectivity probes the data backend when its config is complete.
func (d *Doctor) checkConnectivity(ctx context.Context, r *Result, dataKind provider.DataKind) {
	if dataKind == "" {
		return
	}
	data, err := d.factory.DataProvider(dataKind)
	if err != nil {
		return
	}
	if err := data.ValidateConnection(ctx); err != nil {
		d.addError(r, "connectivity", string(dataKind),
			fmt.Sprintf("connection check failed: %v", err))
	}
}
