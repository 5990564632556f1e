package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unisonhq/unison/internal/config"
	"github.com/unisonhq/unison/internal/doctor"
	"github.com/unisonhq/unison/internal/history"
	"github.com/unisonhq/unison/internal/jobcache"
	"github.com/unisonhq/unison/internal/launch"
	"github.com/unisonhq/unison/internal/log"
	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
	"github.com/unisonhq/unison/internal/registry"
	"github.com/unisonhq/unison/internal/scan"
	"github.com/unisonhq/unison/internal/session"
	"github.com/unisonhq/unison/internal/storage"
	"github.com/unisonhq/unison/internal/workflow"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "setup":
		os.Exit(runSetup(args))
	case "job-status":
		os.Exit(runJobStatus(args))
	case "jobs":
		os.Exit(runJobs(args))
	case "export-manifest":
		os.Exit(runExportManifest(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "version":
		fmt.Printf("unison version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`unison - identity resolution job setup

Usage:
  unison <command> [flags]

Commands:
  setup            Scan tables, review the manifest, and launch the job
  job-status       Check the status of a submitted job
  jobs             List tracked jobs (linkage cache + launch history)
  export-manifest  Build and write a manifest locally without launching
  config           Manage configuration (lock | verify | show)
  doctor           Validate configuration and provider connectivity
  version          Show version information
  help             Show this help message

Setup flags:
  --provider        Data provider family (databricks | aws_redshift)
  --catalog/--schema   Single scan target
  --targets         Comma-separated catalog.schema pairs (databricks)
  --output-catalog  Override the destination catalog (databricks)
  --policy-id       Pin job clusters to a cluster policy (databricks)
  --auto-confirm    Skip the review dialogue and launch immediately
`)
}

// loadConfig loads configuration from the flag path or the default
// location and initializes logging.
func loadConfig(flagPath string) (*config.Config, error) {
	path := flagPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// buildEnvironment resolves providers and wires the launcher and flows for
// the active data family.
type environment struct {
	cfg      *config.Config
	dataKind provider.DataKind
	engine   *workflow.Engine
	flow     workflow.Flow
}

func buildEnvironment(cfg *config.Config, explicitProvider string) (*environment, error) {
	factory := registry.New(cfg)

	dataKind, err := factory.ResolveDataKind(explicitProvider)
	if err != nil {
		return nil, err
	}
	data, err := factory.DataProvider(dataKind)
	if err != nil {
		return nil, err
	}
	computeKind, err := factory.ResolveComputeKind("", dataKind)
	if err != nil {
		return nil, err
	}
	compute, err := factory.ComputeProvider(computeKind)
	if err != nil {
		return nil, err
	}

	outputPath, stagingDir := cfg.ArtifactPaths()
	if outputPath == "" || stagingDir == "" {
		return nil, fmt.Errorf("no artifact destination configured: set a databricks volume or an s3 bucket")
	}

	cache := jobcache.Open(cfg.CachePath)

	var ledger *history.Ledger
	if db, err := storage.OpenSQLite(context.Background(), cfg.HistoryPath); err != nil {
		log.Warn("launch history unavailable", "error", err)
	} else {
		ledger = history.NewLedger(db)
	}

	var recorder launch.LinkageRecorder
	if cfg.TrackerURL != "" {
		recorder = launch.NewHTTPLinkageRecorder(cfg.TrackerURL)
	}
	var reporter launch.ReportGenerator
	if dataKind == provider.DataDatabricks {
		if r := factory.DatabricksReporter(); r != nil {
			reporter = r
		}
	}

	launcher := launch.New(launch.Options{
		Compute:  compute,
		Storage:  factory.StorageSelector(),
		Fetcher:  launch.NewHTTPInitScriptFetcher(cfg.InitScriptURL),
		Recorder: recorder,
		Reporter: reporter,
		Cache:    cache,
		Ledger:   ledger,
		DataKind: dataKind,
	})

	scanner := scan.NewService(data, scan.HeuristicClassifier{})
	flowCfg := workflow.FlowConfig{
		Scanner:    scanner,
		Data:       data,
		Compute:    compute,
		Launcher:   launcher,
		OutputPath: outputPath,
		StagingDir: stagingDir,
	}

	var flow workflow.Flow
	switch dataKind {
	case provider.DataDatabricks:
		flowCfg.PolicyID = cfg.Databricks.PolicyID
		flow = workflow.NewDatabricksFlow(flowCfg, cfg.Databricks.Catalog, cfg.Databricks.Schema)
	case provider.DataRedshift:
		flowCfg.IAMRole = cfg.Redshift.IAMRole
		flowCfg.ClusterID = cfg.EMR.ClusterID
		if cfg.Redshift.S3TempDir != "" {
			flowCfg.ExtraSettings = map[string]any{"s3_temp_dir": cfg.Redshift.S3TempDir}
		}
		flow = workflow.NewRedshiftFlow(flowCfg, cfg.Redshift.Database, cfg.Redshift.Schema)
	default:
		return nil, fmt.Errorf("no workflow variant for data provider %q", dataKind)
	}

	engine := workflow.NewEngine(session.NewStore(), workflow.NewHTTPEditor(cfg.EditorURL), flow)
	return &environment{cfg: cfg, dataKind: dataKind, engine: engine, flow: flow}, nil
}

func runSetup(args []string) int {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	providerName := fs.String("provider", "", "Data provider family")
	catalog := fs.String("catalog", "", "Catalog to scan")
	schema := fs.String("schema", "", "Schema to scan")
	targets := fs.String("targets", "", "Comma-separated catalog.schema pairs")
	outputCatalog := fs.String("output-catalog", "", "Destination catalog override")
	policyID := fs.String("policy-id", "", "Cluster policy id")
	runName := fs.String("run-name", "", "Run name for the submitted job")
	autoConfirm := fs.Bool("auto-confirm", false, "Launch without the review dialogue")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	env, err := buildEnvironment(cfg, *providerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	opts, err := prepareOptions(*catalog, *schema, *targets, *outputCatalog, *policyID, *runName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	step, err := env.engine.Start(ctx, "setup", env.dataKind, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(step.Message)
	if step.Done {
		if step.Phase == workflow.PhaseError {
			return 1
		}
		return 0
	}

	if *autoConfirm {
		return driveAutoConfirm(ctx, env)
	}
	return driveDialogue(ctx, env)
}

// driveAutoConfirm pushes the workflow straight through review and
// confirmation.
func driveAutoConfirm(ctx context.Context, env *environment) int {
	for _, input := range []string{"launch", "confirm"} {
		step, err := env.engine.Handle(ctx, "setup", input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(step.Message)
		if step.Done {
			if step.Phase != workflow.PhaseLaunched {
				return 1
			}
			return 0
		}
	}
	return 0
}

// driveDialogue reads inputs from stdin one line at a time until a terminal
// phase.
func driveDialogue(ctx context.Context, env *environment) int {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return 0
		}
		step, err := env.engine.Handle(ctx, "setup", scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(step.Message)
		if step.Done {
			if step.Phase == workflow.PhaseLaunched {
				return 0
			}
			if step.Phase == workflow.PhaseCancelled {
				return 0
			}
			return 1
		}
	}
}

func prepareOptions(catalog, schema, targets, outputCatalog, policyID, runName string) (workflow.PrepareOptions, error) {
	opts := workflow.PrepareOptions{
		OutputCatalog: outputCatalog,
		PolicyID:      policyID,
		RunName:       runName,
	}

	if targets != "" {
		for _, raw := range strings.Split(targets, ",") {
			pair := strings.TrimSpace(raw)
			if pair == "" {
				continue
			}
			cat, sch, ok := strings.Cut(pair, ".")
			if !ok || cat == "" || sch == "" {
				return opts, fmt.Errorf("invalid target %q: expected catalog.schema", pair)
			}
			opts.Locations = append(opts.Locations, scan.Location{Catalog: cat, Schema: sch})
		}
		return opts, nil
	}

	if catalog != "" || schema != "" {
		if catalog == "" || schema == "" {
			return opts, fmt.Errorf("--catalog and --schema must be given together")
		}
		opts.Locations = []scan.Location{{Catalog: catalog, Schema: schema}}
	}
	return opts, nil
}

func runJobStatus(args []string) int {
	fs := flag.NewFlagSet("job-status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	providerName := fs.String("provider", "", "Data provider family")
	jobID := fs.String("job-id", "", "Logical job id")
	runID := fs.String("run-id", "", "Backend run id")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	factory := registry.New(cfg)
	dataKind, err := factory.ResolveDataKind(*providerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	computeKind, err := factory.ResolveComputeKind("", dataKind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	compute, err := factory.ComputeProvider(computeKind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cache := jobcache.Open(cfg.CachePath)
	resolvedRun := *runID
	resolvedJob := *jobID
	if resolvedRun == "" {
		switch {
		case resolvedJob != "":
			id, ok := cache.Find(resolvedJob)
			if !ok {
				fmt.Fprintf(os.Stderr, "No run recorded for job %s\n", resolvedJob)
				return 1
			}
			resolvedRun = id
		default:
			recent := cache.MostRecent()
			if recent == nil || recent.RunID == "" {
				fmt.Fprintln(os.Stderr, "No tracked jobs; pass --run-id or --job-id")
				return 1
			}
			resolvedJob = recent.JobID
			resolvedRun = recent.RunID
		}
	}

	status, err := compute.GetJobStatus(context.Background(), resolvedRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
		return 1
	}
	if resolvedJob != "" {
		fmt.Printf("job:    %s\n", resolvedJob)
	}
	fmt.Printf("run:    %s\n", resolvedRun)
	fmt.Printf("state:  %s\n", status.State)
	if status.Result != "" {
		fmt.Printf("result: %s\n", status.Result)
	}
	if status.Message != "" {
		fmt.Printf("note:   %s\n", status.Message)
	}
	return 0
}

func runJobs(args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "How many history rows to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	cache := jobcache.Open(cfg.CachePath)
	linkages := cache.All()
	if len(linkages) == 0 {
		fmt.Println("No tracked jobs.")
	} else {
		fmt.Println("Tracked jobs (most recent first):")
		for _, l := range linkages {
			run := l.RunID
			if run == "" {
				run = "-"
			}
			fmt.Printf("  %s  run=%s\n", l.JobID, run)
		}
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.HistoryPath)
	if err != nil {
		log.Warn("launch history unavailable", "error", err)
		return 0
	}
	defer db.Close()

	entries, err := history.NewLedger(db).Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History read failed: %v\n", err)
		return 1
	}
	if len(entries) > 0 {
		fmt.Println("\nLaunch history:")
		for _, e := range entries {
			line := fmt.Sprintf("  %s  %s  %s/%s  %s",
				e.CreatedAt.Format("2006-01-02 15:04"), e.JobID, e.DataKind, e.ComputeKind, e.Status)
			if e.Error != "" {
				line += "  (" + e.Error + ")"
			}
			fmt.Println(line)
		}
	}
	return 0
}

func runExportManifest(args []string) int {
	fs := flag.NewFlagSet("export-manifest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	providerName := fs.String("provider", "", "Data provider family")
	catalog := fs.String("catalog", "", "Catalog to scan")
	schema := fs.String("schema", "", "Schema to scan")
	targets := fs.String("targets", "", "Comma-separated catalog.schema pairs")
	out := fs.String("out", "manifest.json", "Where to write the manifest")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	env, err := buildEnvironment(cfg, *providerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	opts, err := prepareOptions(*catalog, *schema, *targets, "", "", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	m, meta, err := env.flow.Prepare(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		return 1
	}
	if err := manifest.SaveToFile(m, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s (%d tables)\n", *out, len(m.Tables))
	if summary, ok := meta["scan_summary"].(string); ok && summary != "" {
		fmt.Println(summary)
	}
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: unison config <lock|verify|show> [--config path]")
		return 1
	}
	action := args[0]

	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	path := *configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	switch action {
	case "lock":
		if err := config.Lock(path); err != nil {
			fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
			return 1
		}
		fmt.Println("Configuration locked.")
		return 0
	case "verify":
		if err := config.Verify(path); err != nil {
			fmt.Fprintf(os.Stderr, "Verify failed: %v\n", err)
			return 1
		}
		fmt.Println("Configuration verified.")
		return 0
	case "show":
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
			return 1
		}
		if cfg.Databricks.Token != "" {
			cfg.Databricks.Token = "***"
		}
		if cfg.Redshift.SecretAccessKey != "" {
			cfg.Redshift.SecretAccessKey = "***"
		}
		if *jsonOut {
			data, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Println(string(data))
		} else {
			data, _ := yaml.Marshal(cfg)
			fmt.Print(string(data))
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, registry.New(cfg)).Validate(context.Background())
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
	if !result.Valid {
		return 1
	}
	return 0
}
