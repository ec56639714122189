// Package objectstore lists, downloads, and uploads the recorder chunks
// and merged output that live in the object store backing a merge job.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultContentType is used for uploads when the caller does not specify
// one.
const DefaultContentType = "video/mp4"

// uploadPartSize is the multipart upload part size, per spec §4.1
// (>= 5 MiB, recommended 10 MiB).
const uploadPartSize = 10 * 1024 * 1024

// uploadConcurrency bounds the number of parts in flight during a
// multipart upload, per spec §4.1.
const uploadConcurrency = 4

// allowedExtensions are the video container extensions a chunk listing may
// contain, matched case-insensitively.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".ts":   true,
}

// Config holds the object-store connection parameters.
type Config struct {
	// Region is the object-store region.
	Region string
	// Endpoint optionally overrides the default AWS endpoint, for
	// S3-compatible stores.
	Endpoint string
	// AccessKeyID optionally supplies static credentials. When empty, the
	// ambient environment's default credential chain is used.
	AccessKeyID string
	// SecretAccessKey optionally supplies static credentials.
	SecretAccessKey string
}

// Client is a lazily-bound object-store client. Construct it once and reuse
// it across jobs.
type Client struct {
	s3       *s3.Client
	uploader *manager.Uploader
}

// New constructs a Client bound to the given region, picking up credentials
// from the ambient environment when not explicitly configured.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	s3Client := s3.NewFromConfig(awsCfg, clientOpts...)
	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
		u.Concurrency = uploadConcurrency
	})

	return &Client{s3: s3Client, uploader: uploader}, nil
}

// List enumerates every key under (bucket, prefix), paging through
// continuation tokens until exhausted, returning only keys with a
// recognized video extension. Order is not guaranteed.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string

	var continuationToken *string
	for {
		out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %q/%q: %w", bucket, prefix, err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			if allowedExtensions[strings.ToLower(filepath.Ext(*obj.Key))] {
				keys = append(keys, *obj.Key)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	sort.Strings(keys)
	return keys, nil
}

// Download streams (bucket, key) to destPath, creating parent directories
// as needed. The object body is never buffered in memory in full.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: download %q/%q: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("objectstore: create parent dir for %q: %w", destPath, err)
	}

	f, err := os.Create(destPath) // #nosec G304 - destPath is constructed internally from a job's temp dir
	if err != nil {
		return fmt.Errorf("objectstore: create %q: %w", destPath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("objectstore: write %q: %w", destPath, err)
	}

	return nil
}

// Upload multipart-uploads the local file at srcPath to (bucket, key) with
// the given content type. If contentType is empty, DefaultContentType is
// used.
func (c *Client) Upload(ctx context.Context, bucket, key, srcPath, contentType string) error {
	if contentType == "" {
		contentType = DefaultContentType
	}

	f, err := os.Open(srcPath) // #nosec G304 - srcPath is the job's own merged output file
	if err != nil {
		return fmt.Errorf("objectstore: open %q: %w", srcPath, err)
	}
	defer func() { _ = f.Close() }()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("objectstore: upload %q/%q: %w", bucket, key, err)
	}

	return nil
}
