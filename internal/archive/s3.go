// Package archive copies generated reports to S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New wraps an existing client.
func New(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// NewFromEnv loads the default AWS credential chain. region overrides the
// one found in the environment when non-empty.
func NewFromEnv(ctx context.Context, bucket, prefix, region string) (*S3Archiver, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Key builds the object key: <prefix>/<kind>/<yyyy>/<mm>/<name>.
func (a *S3Archiver) Key(kind, name string) string {
	now := a.now().UTC()
	return path.Join(strings.Trim(a.prefix, "/"), kind, now.Format("2006"), now.Format("01"), name)
}

// Put uploads body and returns the s3:// URI of the object.
func (a *S3Archiver) Put(ctx context.Context, kind, name, contentType string, body []byte) (string, error) {
	key := a.Key(kind, name)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}
