// Package artifact uploads launch artifacts (manifests, init scripts) to
// the destination a path names: S3 for s3:// URIs, volumes for /Volumes/
// paths.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/unisonhq/unison/internal/provider"
)

// S3Storage uploads artifacts to S3.
type S3Storage struct {
	api s3iface.S3API
}

// S3Options configures the AWS session for uploads.
type S3Options struct {
	Region     string
	AWSProfile string
}

// NewS3Storage builds an uploader with an AWS session from the given
// options.
func NewS3Storage(opts S3Options) (*S3Storage, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           opts.AWSProfile,
		Config:            aws.Config{Region: aws.String(opts.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Storage{api: s3.New(sess)}, nil
}

// NewS3StorageWithAPI injects an S3 client; used by tests.
func NewS3StorageWithAPI(api s3iface.S3API) *S3Storage {
	return &S3Storage{api: api}
}

var _ provider.StorageProvider = (*S3Storage)(nil)

// UploadFile writes content to an s3://bucket/key destination. S3 puts
// always overwrite, so the flag only guards against accidental clobbering
// when set to false.
func (s *S3Storage) UploadFile(ctx context.Context, content []byte, path string, overwrite bool) error {
	bucket, key, err := splitS3Path(path)
	if err != nil {
		return err
	}

	if !overwrite {
		_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return fmt.Errorf("object already exists: %s", path)
		}
	}

	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return &provider.RemoteError{Op: "s3 PutObject", Err: err}
	}
	return nil
}

func splitS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("s3 path must start with s3://: %s", path)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 path must name a bucket and key: %s", path)
	}
	return bucket, key, nil
}
