package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads artifacts to an S3 bucket.
type S3Store struct {
	client     PutObjectAPI
	bucket     string
	cdnBaseURL string // e.g. "https://audio.example.com"; empty means s3:// locations
}

// NewS3Store creates an S3 storage handler.
func NewS3Store(client PutObjectAPI, bucket, cdnBaseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

// Save uploads the file at path and returns its public URL, or the s3://
// location when no CDN is configured.
func (s *S3Store) Save(ctx context.Context, key, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if s.cdnBaseURL == "" {
		return "s3://" + s.bucket + "/" + key, nil
	}
	return s.cdnBaseURL + "/" + key, nil
}
