// Package provider defines the three capability families the workflow is
// built on: where source tables live (DataProvider), where jobs execute
// (ComputeProvider), and where artifacts land (StorageProvider).
//
// Each family is a closed set of variants identified by a kind tag fixed at
// construction time; callers branch on the tag, never on concrete types.
package provider

import (
	"context"

	"github.com/unisonhq/unison/internal/manifest"
)

// DataKind tags a data-provider variant.
type DataKind string

const (
	DataDatabricks DataKind = "databricks"
	DataRedshift   DataKind = "aws_redshift"
)

// SupportedDataKinds lists every data-provider variant the factory can build.
func SupportedDataKinds() []DataKind {
	return []DataKind{DataDatabricks, DataRedshift}
}

// ComputeKind tags a compute-provider variant.
type ComputeKind string

const (
	ComputeDatabricks ComputeKind = "databricks"
	ComputeEMR        ComputeKind = "aws_emr"
)

// SupportedComputeKinds lists every compute-provider variant the factory can
// build.
func SupportedComputeKinds() []ComputeKind {
	return []ComputeKind{ComputeDatabricks, ComputeEMR}
}

// ColumnMeta is one column of a source table.
type ColumnMeta struct {
	Name string
	Type string
}

// TableMeta describes a source table and, when fetched, its columns.
type TableMeta struct {
	Name     string
	Catalog  string
	Schema   string
	FullName string
	Columns  []ColumnMeta
}

// QueryResult holds rows from ExecuteQuery.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// ListTablesOptions filters ListTables.
type ListTablesOptions struct {
	// Pattern restricts table names (provider-specific matching).
	Pattern string
	// IncludeColumns requests column metadata in the same call where the
	// backend supports it.
	IncludeColumns bool
}

// ColumnTag is one semantic tag to apply to a column.
type ColumnTag struct {
	Table        string
	Column       string
	SemanticType string
}

// TagError reports a single failed tag application.
type TagError struct {
	Table   string
	Column  string
	Message string
}

// TagResult summarizes a TagColumns call.
type TagResult struct {
	Success bool
	Applied int
	Errors  []TagError
}

// DataProvider is the abstraction over where the source tables live.
type DataProvider interface {
	Kind() DataKind

	// ValidateConnection returns nil when the backend is reachable with the
	// configured credentials.
	ValidateConnection(ctx context.Context) error

	ListDatabases(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, database string) ([]string, error)
	ListTables(ctx context.Context, database, schema string, opts ListTablesOptions) ([]TableMeta, error)
	GetTable(ctx context.Context, database, schema, table string) (*TableMeta, error)
	ExecuteQuery(ctx context.Context, query, database string) (*QueryResult, error)

	// TagColumns applies semantic tags. Variants implement this differently
	// (native column tags vs a private metadata table) behind the same
	// contract.
	TagColumns(ctx context.Context, tags []ColumnTag, database, schema string) (*TagResult, error)
}

// JobConfig carries the resolved metadata a compute provider needs to
// prepare a run.
type JobConfig struct {
	RunName    string
	OutputPath string
	StagingDir string
	IAMRole    string
	PolicyID   string
	ClusterID  string
}

// Preparation is everything needed to launch one job exactly once. A failed
// preparation keeps its Err set; LaunchJob refuses to touch it.
type Preparation struct {
	JobID          string
	RunName        string
	Manifest       *manifest.Manifest
	ManifestPath   string
	InitScriptPath string
	// Payload is the backend-specific submission body assembled by
	// PrepareJob.
	Payload map[string]any
	Err     error
}

// LaunchOutcome is a successful submission's identifiers.
type LaunchOutcome struct {
	RunID string
	JobID string
}

// JobStatus reports the state of a submitted run.
type JobStatus struct {
	State   string
	Result  string
	Message string
}

// ComputeProvider is the abstraction over where the job executes.
type ComputeProvider interface {
	Kind() ComputeKind

	PrepareJob(ctx context.Context, m *manifest.Manifest, data DataProvider, cfg JobConfig) (*Preparation, error)

	// LaunchJob submits a prepared job. Callers invoke it at most once per
	// Preparation; a Preparation carrying an error yields
	// ErrPreparationFailed without attempting partial work.
	LaunchJob(ctx context.Context, prep *Preparation) (*LaunchOutcome, error)

	GetJobStatus(ctx context.Context, id string) (*JobStatus, error)
	CancelJob(ctx context.Context, id string) error
}

// StorageProvider is the abstraction over where uploaded artifacts land.
type StorageProvider interface {
	// UploadFile writes content to path, overwriting any existing object
	// when overwrite is true.
	UploadFile(ctx context.Context, content []byte, path string, overwrite bool) error
}
