package config

// Config is the persisted unison configuration (~/.unison/config.yaml).
type Config struct {
	// DataProvider names the active data-provider family. Resolution
	// precedence is explicit argument > UNISON_DATA_PROVIDER > this field >
	// "databricks".
	DataProvider string `yaml:"data_provider"`

	// ComputeProvider names where jobs run; defaults to the data provider's
	// native compute when empty.
	ComputeProvider string `yaml:"compute_provider"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// HistoryPath is the sqlite launch ledger location.
	HistoryPath string `yaml:"history_path"`
	// CachePath is the job linkage cache file location.
	CachePath string `yaml:"cache_path"`

	// InitScriptURL is where the platform bootstrap script is fetched from.
	InitScriptURL string `yaml:"init_script_url"`
	// EditorURL is the endpoint of the natural-language config editor.
	EditorURL string `yaml:"editor_url"`
	// TrackerURL is the endpoint of the remote job-linkage recorder.
	TrackerURL string `yaml:"tracker_url"`

	Databricks DatabricksConfig `yaml:"databricks"`
	Redshift   RedshiftConfig   `yaml:"redshift"`
	EMR        EMRConfig        `yaml:"emr"`
}

// DatabricksConfig holds connection and target settings for the Databricks
// provider family.
type DatabricksConfig struct {
	WorkspaceURL string `yaml:"workspace_url"`
	Token        string `yaml:"token"`
	WarehouseID  string `yaml:"warehouse_id"`
	// Catalog/Schema are the active single-target defaults for scans.
	Catalog string `yaml:"catalog"`
	Schema  string `yaml:"schema"`
	// Volume is the Unity Catalog volume artifacts are uploaded to.
	Volume string `yaml:"volume"`
	// PolicyID optionally pins job clusters to a cluster policy.
	PolicyID string `yaml:"policy_id"`
}

// RedshiftConfig holds connection settings for the Redshift provider.
type RedshiftConfig struct {
	Region            string `yaml:"region"`
	AccessKeyID       string `yaml:"aws_access_key_id"`
	SecretAccessKey   string `yaml:"aws_secret_access_key"`
	AWSProfile        string `yaml:"aws_profile"`
	ClusterIdentifier string `yaml:"cluster_identifier"`
	WorkgroupName     string `yaml:"workgroup_name"`
	Database          string `yaml:"database"`
	Schema            string `yaml:"schema"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3TempDir         string `yaml:"s3_temp_dir"`
	IAMRole           string `yaml:"iam_role"`
}

// EMRConfig holds settings for the EMR compute provider.
type EMRConfig struct {
	Region     string `yaml:"region"`
	ClusterID  string `yaml:"cluster_id"`
	AWSProfile string `yaml:"aws_profile"`
	S3Bucket   string `yaml:"s3_bucket"`
	LogURI     string `yaml:"log_uri"`
}

// ChecksumManifest is the persisted .checksums file guarding config
// integrity.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// ArtifactPaths resolves the output and staging destinations for the
// configured families: volumes when the Databricks volume target is
// complete, S3 otherwise. Both are empty when nothing is configured.
func (c *Config) ArtifactPaths() (outputPath, stagingDir string) {
	if c.Databricks.Volume != "" && c.Databricks.Catalog != "" && c.Databricks.Schema != "" {
		base := "/Volumes/" + c.Databricks.Catalog + "/" + c.Databricks.Schema + "/" + c.Databricks.Volume
		return base + "/output", base + "/staging"
	}
	if c.Redshift.S3Bucket != "" {
		base := "s3://" + c.Redshift.S3Bucket
		staging := base + "/staging"
		if c.Redshift.S3TempDir != "" {
			staging = c.Redshift.S3TempDir
		}
		return base + "/output", staging
	}
	if c.EMR.S3Bucket != "" {
		base := "s3://" + c.EMR.S3Bucket
		return base + "/output", base + "/staging"
	}
	return "", ""
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		DataProvider: "",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}
