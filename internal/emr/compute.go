// Package emr implements the EMR variant of the compute provider: jobs run
// as Spark steps on an existing EMR cluster.
package emr

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsemr "github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"
	"github.com/google/uuid"

	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
)

// Options configures the provider.
type Options struct {
	Region     string
	AWSProfile string
	ClusterID  string
	S3Bucket   string
}

// ComputeProvider submits Spark steps to an existing EMR cluster. On-demand
// cluster creation is a declared capability this variant does not build;
// launching without a cluster id reports ErrUnsupported.
type ComputeProvider struct {
	api  emriface.EMRAPI
	opts Options
}

// NewComputeProvider builds a provider with an AWS session from the given
// options.
func NewComputeProvider(opts Options) (*ComputeProvider, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           opts.AWSProfile,
		Config:            aws.Config{Region: aws.String(opts.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &ComputeProvider{api: awsemr.New(sess), opts: opts}, nil
}

// NewComputeProviderWithAPI injects an EMR client; used by tests.
func NewComputeProviderWithAPI(api emriface.EMRAPI, opts Options) *ComputeProvider {
	return &ComputeProvider{api: api, opts: opts}
}

// Kind returns the variant tag.
func (p *ComputeProvider) Kind() provider.ComputeKind { return provider.ComputeEMR }

// PrepareJob resolves S3 artifact paths and the spark-submit step arguments.
// The cluster must already exist; creating one on demand is unsupported.
func (p *ComputeProvider) PrepareJob(ctx context.Context, m *manifest.Manifest, data provider.DataProvider, cfg provider.JobConfig) (*provider.Preparation, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is nil")
	}
	clusterID := cfg.ClusterID
	if clusterID == "" {
		clusterID = p.opts.ClusterID
	}
	if clusterID == "" {
		return nil, fmt.Errorf("on-demand cluster creation: %w", provider.ErrUnsupported)
	}
	if cfg.StagingDir == "" {
		return nil, &provider.ConfigError{Provider: string(provider.ComputeEMR), Missing: []string{"staging_dir"}}
	}

	jobID := "unison-" + uuid.NewString()
	runName := cfg.RunName
	if runName == "" {
		runName = jobID
	}

	manifestPath := s3Join(cfg.StagingDir, jobID, "manifest.json")
	initScriptPath := s3Join(cfg.StagingDir, jobID, "bootstrap.sh")

	args := []string{
		"spark-submit",
		"--deploy-mode", "cluster",
		"--packages", "io.github.spark-redshift-community:spark-redshift_2.12:6.2.0",
		s3Join(cfg.StagingDir, jobID, "run.py"),
		"--manifest", manifestPath,
		"--output", cfg.OutputPath,
	}
	if cfg.IAMRole != "" {
		args = append(args, "--iam-role", cfg.IAMRole)
	}

	return &provider.Preparation{
		JobID:          jobID,
		RunName:        runName,
		Manifest:       m,
		ManifestPath:   manifestPath,
		InitScriptPath: initScriptPath,
		Payload: map[string]any{
			"cluster_id": clusterID,
			"step_name":  runName,
			"args":       args,
		},
	}, nil
}

// LaunchJob checks the cluster is in a runnable state, then adds the Spark
// step. A Preparation that failed preparation is refused outright.
func (p *ComputeProvider) LaunchJob(ctx context.Context, prep *provider.Preparation) (*provider.LaunchOutcome, error) {
	if prep == nil || prep.Err != nil {
		return nil, provider.ErrPreparationFailed
	}

	clusterID, _ := prep.Payload["cluster_id"].(string)
	stepName, _ := prep.Payload["step_name"].(string)
	args, _ := prep.Payload["args"].([]string)
	if clusterID == "" || len(args) == 0 {
		return nil, provider.ErrPreparationFailed
	}

	desc, err := p.api.DescribeClusterWithContext(ctx, &awsemr.DescribeClusterInput{
		ClusterId: aws.String(clusterID),
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "emr DescribeCluster", Err: err}
	}
	var state string
	if desc.Cluster != nil && desc.Cluster.Status != nil {
		state = aws.StringValue(desc.Cluster.Status.State)
	}
	if state != awsemr.ClusterStateWaiting && state != awsemr.ClusterStateRunning {
		return nil, &provider.BackendError{
			Op:     "emr AddJobFlowSteps",
			Reason: fmt.Sprintf("cluster %s not in a runnable state (%s)", clusterID, state),
		}
	}

	out, err := p.api.AddJobFlowStepsWithContext(ctx, &awsemr.AddJobFlowStepsInput{
		JobFlowId: aws.String(clusterID),
		Steps: []*awsemr.StepConfig{
			{
				Name:            aws.String(stepName),
				ActionOnFailure: aws.String(awsemr.ActionOnFailureContinue),
				HadoopJarStep: &awsemr.HadoopJarStepConfig{
					Jar:  aws.String("command-runner.jar"),
					Args: aws.StringSlice(args),
				},
			},
		},
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "emr AddJobFlowSteps", Err: err}
	}
	if len(out.StepIds) == 0 || aws.StringValue(out.StepIds[0]) == "" {
		return nil, &provider.BackendError{Op: "emr AddJobFlowSteps", Reason: "response carried no step id"}
	}

	return &provider.LaunchOutcome{
		RunID: aws.StringValue(out.StepIds[0]),
		JobID: prep.JobID,
	}, nil
}

// GetJobStatus reports the state of a step.
func (p *ComputeProvider) GetJobStatus(ctx context.Context, id string) (*provider.JobStatus, error) {
	if p.opts.ClusterID == "" {
		return nil, fmt.Errorf("step status without cluster id: %w", provider.ErrUnsupported)
	}
	out, err := p.api.DescribeStepWithContext(ctx, &awsemr.DescribeStepInput{
		ClusterId: aws.String(p.opts.ClusterID),
		StepId:    aws.String(id),
	})
	if err != nil {
		return nil, &provider.RemoteError{Op: "emr DescribeStep", Err: err}
	}

	status := &provider.JobStatus{}
	if out.Step != nil && out.Step.Status != nil {
		status.State = aws.StringValue(out.Step.Status.State)
		switch status.State {
		case awsemr.StepStateCompleted:
			status.Result = "SUCCESS"
		case awsemr.StepStateFailed, awsemr.StepStateCancelled:
			status.Result = "FAILED"
		}
		if out.Step.Status.StateChangeReason != nil {
			status.Message = aws.StringValue(out.Step.Status.StateChangeReason.Message)
		}
	}
	return status, nil
}

// CancelJob cancels a pending or running step.
func (p *ComputeProvider) CancelJob(ctx context.Context, id string) error {
	if p.opts.ClusterID == "" {
		return fmt.Errorf("step cancel without cluster id: %w", provider.ErrUnsupported)
	}
	_, err := p.api.CancelStepsWithContext(ctx, &awsemr.CancelStepsInput{
		ClusterId: aws.String(p.opts.ClusterID),
		StepIds:   aws.StringSlice([]string{id}),
	})
	if err != nil {
		return &provider.RemoteError{Op: "emr CancelSteps", Err: err}
	}
	return nil
}

func s3Join(base string, parts ...string) string {
	trimmed := strings.TrimRight(base, "/")
	return trimmed + "/" + path.Join(parts...)
}
