package emr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awsemr "github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"

	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
)

type fakeEMR struct {
	emriface.EMRAPI

	clusterState string
	noStatus     bool
	describeErr  error
	stepIDs      []string
	addStepsErr  error
	addedSteps   *awsemr.AddJobFlowStepsInput
	stepState    string
	cancelled    []string
}

func (f *fakeEMR) DescribeClusterWithContext(_ aws.Context, in *awsemr.DescribeClusterInput, _ ...request.Option) (*awsemr.DescribeClusterOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.noStatus {
		return &awsemr.DescribeClusterOutput{Cluster: &awsemr.Cluster{Id: in.ClusterId}}, nil
	}
	return &awsemr.DescribeClusterOutput{
		Cluster: &awsemr.Cluster{
			Id:     in.ClusterId,
			Status: &awsemr.ClusterStatus{State: aws.String(f.clusterState)},
		},
	}, nil
}

func (f *fakeEMR) AddJobFlowStepsWithContext(_ aws.Context, in *awsemr.AddJobFlowStepsInput, _ ...request.Option) (*awsemr.AddJobFlowStepsOutput, error) {
	if f.addStepsErr != nil {
		return nil, f.addStepsErr
	}
	f.addedSteps = in
	return &awsemr.AddJobFlowStepsOutput{StepIds: aws.StringSlice(f.stepIDs)}, nil
}

func (f *fakeEMR) DescribeStepWithContext(_ aws.Context, in *awsemr.DescribeStepInput, _ ...request.Option) (*awsemr.DescribeStepOutput, error) {
	return &awsemr.DescribeStepOutput{
		Step: &awsemr.Step{
			Id:     in.StepId,
			Status: &awsemr.StepStatus{State: aws.String(f.stepState)},
		},
	}, nil
}

func (f *fakeEMR) CancelStepsWithContext(_ aws.Context, in *awsemr.CancelStepsInput, _ ...request.Option) (*awsemr.CancelStepsOutput, error) {
	f.cancelled = append(f.cancelled, aws.StringValueSlice(in.StepIds)...)
	return &awsemr.CancelStepsOutput{}, nil
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Tables: []manifest.TableSpec{{
			Path:   "dev.public.customers",
			Fields: []manifest.FieldSpec{{Name: "email", Type: manifest.TypeString, Semantics: []string{"email", "pii"}}},
		}},
		Settings: map[string]any{"output_path": "s3://b/out", "staging_dir": "s3://b/staging"},
	}
}

func TestPrepareJobWithoutClusterIsUnsupported(t *testing.T) {
	t.Parallel()

	p := NewComputeProviderWithAPI(&fakeEMR{}, Options{Region: "us-east-1"})
	_, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		OutputPath: "s3://b/out",
		StagingDir: "s3://b/staging",
	})
	if !errors.Is(err, provider.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestPrepareJobBuildsStepArgs(t *testing.T) {
	t.Parallel()

	p := NewComputeProviderWithAPI(&fakeEMR{}, Options{Region: "us-east-1", ClusterID: "j-ABC"})
	prep, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		RunName:    "nightly",
		OutputPath: "s3://b/out",
		StagingDir: "s3://b/staging/",
		IAMRole:    "arn:aws:iam::1:role/unison",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !strings.HasPrefix(prep.ManifestPath, "s3://b/staging/") || !strings.HasSuffix(prep.ManifestPath, "manifest.json") {
		t.Fatalf("manifest path %q", prep.ManifestPath)
	}
	args, _ := prep.Payload["args"].([]string)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "spark-submit") || !strings.Contains(joined, "--iam-role") {
		t.Fatalf("args %v", args)
	}
}

func TestLaunchJobRejectsUnrunnableCluster(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{clusterState: awsemr.ClusterStateTerminated}
	p := NewComputeProviderWithAPI(api, Options{Region: "us-east-1", ClusterID: "j-ABC"})
	prep, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		OutputPath: "s3://b/out", StagingDir: "s3://b/staging",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	_, err = p.LaunchJob(context.Background(), prep)
	var backendErr *provider.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !strings.Contains(backendErr.Reason, "not in a runnable state") {
		t.Fatalf("reason %q", backendErr.Reason)
	}
	if api.addedSteps != nil {
		t.Fatal("step must not be added to an unrunnable cluster")
	}
}

func TestLaunchJobToleratesMissingClusterStatus(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{noStatus: true}
	p := NewComputeProviderWithAPI(api, Options{Region: "us-east-1", ClusterID: "j-ABC"})
	prep, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		OutputPath: "s3://b/out", StagingDir: "s3://b/staging",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	_, err = p.LaunchJob(context.Background(), prep)
	var backendErr *provider.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if api.addedSteps != nil {
		t.Fatal("step must not be added when the cluster state is unknown")
	}
}

func TestLaunchJobSubmitsStep(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{clusterState: awsemr.ClusterStateWaiting, stepIDs: []string{"s-123"}}
	p := NewComputeProviderWithAPI(api, Options{Region: "us-east-1", ClusterID: "j-ABC"})
	prep, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		OutputPath: "s3://b/out", StagingDir: "s3://b/staging",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	outcome, err := p.LaunchJob(context.Background(), prep)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if outcome.RunID != "s-123" || outcome.JobID != prep.JobID {
		t.Fatalf("outcome %+v", outcome)
	}
	if api.addedSteps == nil || aws.StringValue(api.addedSteps.JobFlowId) != "j-ABC" {
		t.Fatalf("steps input %+v", api.addedSteps)
	}
}

func TestLaunchJobMissingStepIDIsFailure(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{clusterState: awsemr.ClusterStateRunning}
	p := NewComputeProviderWithAPI(api, Options{Region: "us-east-1", ClusterID: "j-ABC"})
	prep, err := p.PrepareJob(context.Background(), testManifest(), nil, provider.JobConfig{
		OutputPath: "s3://b/out", StagingDir: "s3://b/staging",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	_, err = p.LaunchJob(context.Background(), prep)
	var backendErr *provider.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
}

func TestLaunchJobRefusesFailedPreparation(t *testing.T) {
	t.Parallel()

	p := NewComputeProviderWithAPI(&fakeEMR{}, Options{ClusterID: "j-ABC"})
	_, err := p.LaunchJob(context.Background(), &provider.Preparation{Err: errors.New("prepare failed")})
	if !errors.Is(err, provider.ErrPreparationFailed) {
		t.Fatalf("expected ErrPreparationFailed, got %v", err)
	}
	_, err = p.LaunchJob(context.Background(), nil)
	if !errors.Is(err, provider.ErrPreparationFailed) {
		t.Fatalf("expected ErrPreparationFailed for nil prep, got %v", err)
	}
}

func TestGetJobStatusMapsResult(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{stepState: awsemr.StepStateCompleted}
	p := NewComputeProviderWithAPI(api, Options{ClusterID: "j-ABC"})
	status, err := p.GetJobStatus(context.Background(), "s-123")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != awsemr.StepStateCompleted || status.Result != "SUCCESS" {
		t.Fatalf("status %+v", status)
	}
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	api := &fakeEMR{}
	p := NewComputeProviderWithAPI(api, Options{ClusterID: "j-ABC"})
	if err := p.CancelJob(context.Background(), "s-9"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(api.cancelled) != 1 || api.cancelled[0] != "s-9" {
		t.Fatalf("cancelled %v", api.cancelled)
	}
}
