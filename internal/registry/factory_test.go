package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/unisonhq/unison/internal/config"
	"github.com/unisonhq/unison/internal/provider"
)

func emptyConfig() *config.Config {
	cfg := config.Defaults()
	return cfg
}

func TestResolveDataKindPrecedence(t *testing.T) {
	cfg := emptyConfig()
	cfg.DataProvider = "aws_redshift"
	f := New(cfg)

	// Config file setting applies when nothing above it is set.
	t.Setenv(EnvDataProvider, "")
	kind, err := f.ResolveDataKind("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.DataRedshift {
		t.Fatalf("config file setting ignored, got %s", kind)
	}

	// Environment outranks the config file.
	t.Setenv(EnvDataProvider, "databricks")
	kind, err = f.ResolveDataKind("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.DataDatabricks {
		t.Fatalf("env should outrank config file, got %s", kind)
	}

	// Explicit argument outranks everything.
	kind, err = f.ResolveDataKind("aws_redshift")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.DataRedshift {
		t.Fatalf("explicit should outrank env, got %s", kind)
	}
}

func TestResolveDataKindDefault(t *testing.T) {
	t.Setenv(EnvDataProvider, "")
	f := New(emptyConfig())

	kind, err := f.ResolveDataKind("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.DataDatabricks {
		t.Fatalf("expected databricks default, got %s", kind)
	}
}

func TestResolveEverySupportedKind(t *testing.T) {
	t.Setenv(EnvDataProvider, "")
	t.Setenv(EnvComputeProvider, "")
	f := New(emptyConfig())

	for _, want := range provider.SupportedDataKinds() {
		kind, err := f.ResolveDataKind(string(want))
		if err != nil {
			t.Fatalf("resolve %s: %v", want, err)
		}
		if kind != want {
			t.Fatalf("resolved %s, want %s", kind, want)
		}
	}
	for _, want := range provider.SupportedComputeKinds() {
		kind, err := f.ResolveComputeKind(string(want), provider.DataDatabricks)
		if err != nil {
			t.Fatalf("resolve %s: %v", want, err)
		}
		if kind != want {
			t.Fatalf("resolved %s, want %s", kind, want)
		}
	}
}

func TestResolveDataKindUnknown(t *testing.T) {
	t.Setenv(EnvDataProvider, "")
	f := New(emptyConfig())

	_, err := f.ResolveDataKind("snowflake")
	var unknown *provider.UnknownProviderError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownProviderError, got %v", err)
	}
	if unknown.Name != "snowflake" {
		t.Fatalf("wrong name: %s", unknown.Name)
	}
	if len(unknown.Supported) != 2 {
		t.Fatalf("supported set: %v", unknown.Supported)
	}
}

func TestResolveComputeKindPairsWithData(t *testing.T) {
	t.Setenv(EnvComputeProvider, "")
	f := New(emptyConfig())

	kind, err := f.ResolveComputeKind("", provider.DataRedshift)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.ComputeEMR {
		t.Fatalf("redshift data should default to emr compute, got %s", kind)
	}

	kind, err = f.ResolveComputeKind("", provider.DataDatabricks)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if kind != provider.ComputeDatabricks {
		t.Fatalf("databricks data should default to databricks compute, got %s", kind)
	}
}

func TestDataProviderMissingFieldsAllReported(t *testing.T) {
	t.Setenv("DATABRICKS_WORKSPACE_URL", "")
	t.Setenv("DATABRICKS_TOKEN", "")
	f := New(emptyConfig())

	_, err := f.DataProvider(provider.DataDatabricks)
	var cfgErr *provider.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	msg := cfgErr.Error()
	if !strings.Contains(msg, "token") || !strings.Contains(msg, "workspace_url") {
		t.Fatalf("error must name every missing field: %s", msg)
	}
}

func TestDataProviderTokenOnlyMissing(t *testing.T) {
	t.Setenv("DATABRICKS_WORKSPACE_URL", "")
	t.Setenv("DATABRICKS_TOKEN", "")
	cfg := emptyConfig()
	cfg.Databricks.WorkspaceURL = "https://example.cloud.databricks.com"
	f := New(cfg)

	_, err := f.DataProvider(provider.DataDatabricks)
	var cfgErr *provider.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(cfgErr.Error(), "token") {
		t.Fatalf("expected token in %s", cfgErr.Error())
	}
	if strings.Contains(cfgErr.Error(), "workspace_url") {
		t.Fatalf("workspace_url is present, must not be reported: %s", cfgErr.Error())
	}
}

func TestDataProviderEnvFallback(t *testing.T) {
	t.Setenv("DATABRICKS_WORKSPACE_URL", "https://example.cloud.databricks.com")
	t.Setenv("DATABRICKS_TOKEN", "dapi-test")
	f := New(emptyConfig())

	p, err := f.DataProvider(provider.DataDatabricks)
	if err != nil {
		t.Fatalf("build from env: %v", err)
	}
	if p.Kind() != provider.DataDatabricks {
		t.Fatalf("wrong kind %s", p.Kind())
	}
}

func TestRedshiftDataProviderMissingFields(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	f := New(emptyConfig())

	_, err := f.DataProvider(provider.DataRedshift)
	var cfgErr *provider.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	msg := cfgErr.Error()
	for _, want := range []string{"region", "cluster_identifier or workgroup_name", "database"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %s", want, msg)
		}
	}
}

func TestRedshiftDataProviderBuilds(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg := emptyConfig()
	cfg.Redshift.Region = "us-east-1"
	cfg.Redshift.WorkgroupName = "analytics"
	cfg.Redshift.Database = "dev"
	f := New(cfg)

	p, err := f.DataProvider(provider.DataRedshift)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Kind() != provider.DataRedshift {
		t.Fatalf("wrong kind %s", p.Kind())
	}
}

func TestComputeProviderEMRNeedsRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	f := New(emptyConfig())

	_, err := f.ComputeProvider(provider.ComputeEMR)
	var cfgErr *provider.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(cfgErr.Error(), "region") {
		t.Fatalf("expected region in %s", cfgErr.Error())
	}
}
