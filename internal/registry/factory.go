// Package registry resolves concrete provider implementations from layered
// sources: explicit caller choice, environment, the config file, then a
// fixed default.
package registry

import (
	"os"

	"github.com/unisonhq/unison/internal/artifact"
	"github.com/unisonhq/unison/internal/config"
	"github.com/unisonhq/unison/internal/databricks"
	"github.com/unisonhq/unison/internal/emr"
	"github.com/unisonhq/unison/internal/provider"
	"github.com/unisonhq/unison/internal/redshift"
)

// Environment variables consulted during resolution.
const (
	EnvDataProvider    = "UNISON_DATA_PROVIDER"
	EnvComputeProvider = "UNISON_COMPUTE_PROVIDER"
)

// Factory builds providers from configuration.
type Factory struct {
	cfg *config.Config
}

// New returns a factory over the given configuration.
func New(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// ResolveDataKind picks the active data-provider family. Highest wins:
// explicit argument, UNISON_DATA_PROVIDER, the config file, then the
// databricks default.
func (f *Factory) ResolveDataKind(explicit string) (provider.DataKind, error) {
	name := explicit
	if name == "" {
		name = os.Getenv(EnvDataProvider)
	}
	if name == "" {
		name = f.cfg.DataProvider
	}
	if name == "" {
		name = string(provider.DataDatabricks)
	}

	for _, kind := range provider.SupportedDataKinds() {
		if name == string(kind) {
			return kind, nil
		}
	}
	return "", &provider.UnknownProviderError{
		Name:      name,
		Supported: dataKindNames(),
	}
}

// ResolveComputeKind picks the compute family. Same precedence as data
// resolution; the default pairs with the data family (databricks data runs
// databricks jobs, redshift data runs EMR steps).
func (f *Factory) ResolveComputeKind(explicit string, dataKind provider.DataKind) (provider.ComputeKind, error) {
	name := explicit
	if name == "" {
		name = os.Getenv(EnvComputeProvider)
	}
	if name == "" {
		name = f.cfg.ComputeProvider
	}
	if name == "" {
		if dataKind == provider.DataRedshift {
			name = string(provider.ComputeEMR)
		} else {
			name = string(provider.ComputeDatabricks)
		}
	}

	for _, kind := range provider.SupportedComputeKinds() {
		if name == string(kind) {
			return kind, nil
		}
	}
	return "", &provider.UnknownProviderError{
		Name:      name,
		Supported: computeKindNames(),
	}
}

// DataProvider constructs the data provider for a kind. Every missing
// required field is reported in one ConfigError.
func (f *Factory) DataProvider(kind provider.DataKind) (provider.DataProvider, error) {
	switch kind {
	case provider.DataDatabricks:
		client, err := f.databricksClient()
		if err != nil {
			return nil, err
		}
		return databricks.NewDataProvider(client, f.cfg.Databricks.WarehouseID), nil

	case provider.DataRedshift:
		rs := f.cfg.Redshift
		var missing []string
		if region(rs.Region) == "" {
			missing = append(missing, "region")
		}
		if rs.ClusterIdentifier == "" && rs.WorkgroupName == "" {
			missing = append(missing, "cluster_identifier or workgroup_name")
		}
		if rs.Database == "" {
			missing = append(missing, "database")
		}
		if len(missing) > 0 {
			return nil, &provider.ConfigError{Provider: string(kind), Missing: missing}
		}
		return redshift.NewDataProvider(redshift.Options{
			Region:            region(rs.Region),
			AWSProfile:        rs.AWSProfile,
			AccessKeyID:       rs.AccessKeyID,
			SecretAccessKey:   rs.SecretAccessKey,
			ClusterIdentifier: rs.ClusterIdentifier,
			WorkgroupName:     rs.WorkgroupName,
			Database:          rs.Database,
		})

	default:
		return nil, &provider.UnknownProviderError{Name: string(kind), Supported: dataKindNames()}
	}
}

// ComputeProvider constructs the compute provider for a kind.
func (f *Factory) ComputeProvider(kind provider.ComputeKind) (provider.ComputeProvider, error) {
	switch kind {
	case provider.ComputeDatabricks:
		client, err := f.databricksClient()
		if err != nil {
			return nil, err
		}
		return databricks.NewComputeProvider(client), nil

	case provider.ComputeEMR:
		ec := f.cfg.EMR
		if region(ec.Region) == "" {
			return nil, &provider.ConfigError{Provider: string(kind), Missing: []string{"region"}}
		}
		return emr.NewComputeProvider(emr.Options{
			Region:     region(ec.Region),
			AWSProfile: ec.AWSProfile,
			ClusterID:  ec.ClusterID,
			S3Bucket:   ec.S3Bucket,
		})

	default:
		return nil, &provider.UnknownProviderError{Name: string(kind), Supported: computeKindNames()}
	}
}

// StorageSelector builds a path-prefix selector over every storage backend
// the configuration can reach. Backends that cannot be constructed are
// simply absent from the selector.
func (f *Factory) StorageSelector() *artifact.Selector {
	sel := &artifact.Selector{}

	if client, err := f.databricksClient(); err == nil {
		sel.Volumes = databricks.NewVolumeStorage(client)
	}

	awsRegion := region(f.cfg.EMR.Region)
	if awsRegion == "" {
		awsRegion = region(f.cfg.Redshift.Region)
	}
	if awsRegion != "" {
		if s3store, err := artifact.NewS3Storage(artifact.S3Options{
			Region:     awsRegion,
			AWSProfile: f.cfg.EMR.AWSProfile,
		}); err == nil {
			sel.S3 = s3store
		}
	}
	return sel
}

// DatabricksReporter builds the workspace report generator, or nil when the
// workspace is not configured.
func (f *Factory) DatabricksReporter() *databricks.ReportGenerator {
	client, err := f.databricksClient()
	if err != nil {
		return nil
	}
	return databricks.NewReportGenerator(client)
}

func (f *Factory) databricksClient() (*databricks.Client, error) {
	db := f.cfg.Databricks
	workspaceURL := db.WorkspaceURL
	if workspaceURL == "" {
		workspaceURL = os.Getenv("DATABRICKS_WORKSPACE_URL")
	}
	token := db.Token
	if token == "" {
		token = os.Getenv("DATABRICKS_TOKEN")
	}

	var missing []string
	if workspaceURL == "" {
		missing = append(missing, "workspace_url")
	}
	if token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return nil, &provider.ConfigError{Provider: string(provider.DataDatabricks), Missing: missing}
	}
	return databricks.NewClient(workspaceURL, token), nil
}

func region(configured string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv("AWS_REGION")
}

func dataKindNames() []string {
	kinds := provider.SupportedDataKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func computeKindNames() []string {
	kinds := provider.SupportedComputeKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
