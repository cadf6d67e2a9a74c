package snapshot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store mirrors snapshot blobs to an S3 bucket on a best-effort basis.
// It is never the authoritative store: callers write to a LocalStore
// first and treat S3Store failures as logged warnings, not errors.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds an S3Store from an s3://bucket/prefix URI and AWS
// region. It loads credentials from the default AWS credential chain.
func NewS3Store(ctx context.Context, uri, region string) (*S3Store, error) {
	bucket, prefix, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func parseS3URI(uri string) (bucket, prefix string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", fmt.Errorf("invalid s3 uri %q: must start with s3://", uri)
	}
	rest := strings.TrimPrefix(uri, scheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: missing bucket", uri)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = strings.TrimSuffix(parts[1], "/")
	}
	return bucket, prefix, nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Write mirrors both blobs. Each object upload failure is logged and
// swallowed independently so a transient S3 hiccup never blocks the
// local snapshot loop.
func (s *S3Store) Write(ctx context.Context, folder string, itemsJSON, projectJSON []byte) error {
	s.putBestEffort(ctx, "items.json", itemsJSON)
	s.putBestEffort(ctx, "project.json", projectJSON)
	return nil
}

func (s *S3Store) putBestEffort(ctx context.Context, name string, body []byte) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytesReader(body),
	})
	if err != nil {
		log.Printf("snapshot: s3 mirror of %s failed: %v", name, err)
	}
}

// ReadItems is not used by the mirror; the local store is authoritative
// for resume. It is implemented only to satisfy Store.
func (s *S3Store) ReadItems(ctx context.Context, folder string) ([]byte, error) {
	return nil, nil
}

// ReadProject is not used by the mirror; see ReadItems.
func (s *S3Store) ReadProject(ctx context.Context, folder string) ([]byte, error) {
	return nil, nil
}
