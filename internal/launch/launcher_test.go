package launch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unisonhq/unison/internal/artifact"
	"github.com/unisonhq/unison/internal/jobcache"
	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
)

type fakeStorage struct {
	uploads []string
	failOn  string
}

func (f *fakeStorage) UploadFile(_ context.Context, _ []byte, path string, _ bool) error {
	if f.failOn != "" && strings.Contains(path, f.failOn) {
		return errors.New("upload refused")
	}
	f.uploads = append(f.uploads, path)
	return nil
}

type fakeCompute struct {
	provider.ComputeProvider

	outcome *provider.LaunchOutcome
	err     error
	calls   int
}

func (f *fakeCompute) Kind() provider.ComputeKind { return provider.ComputeDatabricks }

func (f *fakeCompute) LaunchJob(_ context.Context, _ *provider.Preparation) (*provider.LaunchOutcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("#!/bin/sh\n"), nil
}

type fakeRecorder struct {
	recorded []string
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, jobID, runID string) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, jobID+"="+runID)
	return nil
}

type fakeReporter struct {
	path string
	err  error
}

func (f *fakeReporter) Generate(context.Context, string, string) (string, error) {
	return f.path, f.err
}

func testPrep() *provider.Preparation {
	return &provider.Preparation{
		JobID: "unison-test",
		Manifest: &manifest.Manifest{
			Tables: []manifest.TableSpec{{
				Path:   "main.crm.customers",
				Fields: []manifest.FieldSpec{{Name: "email", Type: manifest.TypeString, Semantics: []string{"email", "pii"}}},
			}},
			Settings: map[string]any{"output_path": "/Volumes/out", "staging_dir": "/Volumes/stage"},
		},
		ManifestPath:   "/Volumes/stage/unison-test/manifest.json",
		InitScriptPath: "/Volumes/stage/unison-test/init.sh",
	}
}

func newTestCache(t *testing.T) *jobcache.Cache {
	t.Helper()
	return jobcache.Open(filepath.Join(t.TempDir(), "job_cache.json"))
}

func TestLaunchHappyPath(t *testing.T) {
	t.Parallel()

	store := &fakeStorage{}
	recorder := &fakeRecorder{}
	cache := newTestCache(t)
	l := New(Options{
		Compute:  &fakeCompute{outcome: &provider.LaunchOutcome{RunID: "12345", JobID: "unison-test"}},
		Storage:  &artifact.Selector{Volumes: store},
		Fetcher:  &fakeFetcher{},
		Recorder: recorder,
		Reporter: &fakeReporter{path: "/Workspace/reports/unison-test"},
		Cache:    cache,
	})

	result := l.Launch(context.Background(), testPrep())
	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.RunID != "12345" {
		t.Fatalf("run id %q", result.RunID)
	}
	if len(store.uploads) != 2 {
		t.Fatalf("expected manifest and init script uploads, got %v", store.uploads)
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0] != "unison-test=12345" {
		t.Fatalf("recorder got %v", recorder.recorded)
	}
	if runID, ok := cache.Find("unison-test"); !ok || runID != "12345" {
		t.Fatalf("cache find: %q %v", runID, ok)
	}
	if !strings.Contains(result.Message, "12345") || !strings.Contains(result.Message, "job-status") {
		t.Fatalf("summary missing details:\n%s", result.Message)
	}
	if !strings.Contains(result.Message, "/Workspace/reports/unison-test") {
		t.Fatalf("summary missing report path:\n%s", result.Message)
	}
}

func TestLaunchManifestUploadFatal(t *testing.T) {
	t.Parallel()

	compute := &fakeCompute{outcome: &provider.LaunchOutcome{RunID: "1"}}
	l := New(Options{
		Compute: compute,
		Storage: &artifact.Selector{Volumes: &fakeStorage{failOn: "manifest.json"}},
		Fetcher: &fakeFetcher{},
	})

	result := l.Launch(context.Background(), testPrep())
	if result.Success {
		t.Fatal("manifest upload failure must abort the launch")
	}
	if compute.calls != 0 {
		t.Fatal("compute must not be called after a fatal upload failure")
	}
	if !strings.Contains(result.Message, "manifest") {
		t.Fatalf("message should name the failed step: %q", result.Message)
	}
}

func TestLaunchInitScriptFetchFatal(t *testing.T) {
	t.Parallel()

	compute := &fakeCompute{outcome: &provider.LaunchOutcome{RunID: "1"}}
	l := New(Options{
		Compute: compute,
		Storage: &artifact.Selector{Volumes: &fakeStorage{}},
		Fetcher: &fakeFetcher{err: errors.New("404")},
	})

	result := l.Launch(context.Background(), testPrep())
	if result.Success || compute.calls != 0 {
		t.Fatalf("fetch failure must abort before submission: %+v", result)
	}
}

func TestLaunchMissingRunIDIsFailure(t *testing.T) {
	t.Parallel()

	l := New(Options{
		Compute: &fakeCompute{outcome: &provider.LaunchOutcome{RunID: ""}},
		Storage: &artifact.Selector{Volumes: &fakeStorage{}},
		Fetcher: &fakeFetcher{},
	})

	result := l.Launch(context.Background(), testPrep())
	if result.Success {
		t.Fatal("missing run id must be treated as failure")
	}
	if !strings.Contains(result.Message, "no run id") {
		t.Fatalf("message: %q", result.Message)
	}
}

func TestLaunchRecorderFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	l := New(Options{
		Compute:  &fakeCompute{outcome: &provider.LaunchOutcome{RunID: "77"}},
		Storage:  &artifact.Selector{Volumes: &fakeStorage{}},
		Fetcher:  &fakeFetcher{},
		Recorder: &fakeRecorder{err: errors.New("tracker down")},
	})

	result := l.Launch(context.Background(), testPrep())
	if !result.Success {
		t.Fatalf("recorder failure must not fail the launch: %q", result.Message)
	}
}

func TestLaunchReportFailureDegradesMessage(t *testing.T) {
	t.Parallel()

	l := New(Options{
		Compute:  &fakeCompute{outcome: &provider.LaunchOutcome{RunID: "88"}},
		Storage:  &artifact.Selector{Volumes: &fakeStorage{}},
		Fetcher:  &fakeFetcher{},
		Reporter: &fakeReporter{err: errors.New("notebook service down")},
	})

	result := l.Launch(context.Background(), testPrep())
	if !result.Success {
		t.Fatalf("report failure must not flip success: %q", result.Message)
	}
	if !strings.Contains(result.Message, "warning") {
		t.Fatalf("message should carry a warning note: %q", result.Message)
	}
}

func TestLaunchRefusesFailedPreparation(t *testing.T) {
	t.Parallel()

	compute := &fakeCompute{}
	l := New(Options{
		Compute: compute,
		Storage: &artifact.Selector{Volumes: &fakeStorage{}},
		Fetcher: &fakeFetcher{},
	})

	result := l.Launch(context.Background(), &provider.Preparation{Err: errors.New("prepare exploded")})
	if result.Success || compute.calls != 0 {
		t.Fatalf("failed preparation must not be launched: %+v", result)
	}
}
