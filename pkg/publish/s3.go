// Package publish uploads a finished run directory to S3-compatible object
// storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
)

// ErrNoBucket is returned when publishing is requested without a bucket.
var ErrNoBucket = errors.New("s3 bucket required")

// PutObjectAPI is the part of the S3 client the publisher uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads files under a key prefix of one bucket.
type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    *zap.Logger
}

// New builds a publisher from cfg. The region defaults to us-east-1, and a
// custom endpoint with path-style addressing serves MinIO.
func New(ctx context.Context, cfg config.S3Config, log *zap.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, log), nil
}

// NewWithClient builds a publisher over an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Key returns the object key of a file at rel inside the run directory.
func (p *Publisher) Key(rel string) string {
	return path.Join(p.prefix, filepath.ToSlash(rel))
}

// PublishDir uploads every regular file below dir and returns the keys.
func (p *Publisher) PublishDir(ctx context.Context, dir string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		key := p.Key(rel)
		if err := p.put(ctx, name, key); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("Run published", zap.String("bucket", p.bucket), zap.String("prefix", p.prefix), zap.Int("objects", len(keys)))
	return keys, nil
}

func (p *Publisher) put(ctx context.Context, name, key string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	input := &s3.PutObjectInput{Bucket: &p.bucket, Key: &key, Body: f}
	if ct := contentType(name); ct != "" {
		input.ContentType = &ct
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	p.log.Debug("Object uploaded", zap.String("key", key))
	return nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".parquet", ".arrow":
		return "application/octet-stream"
	}
	return mime.TypeByExtension(filepath.Ext(name))
}
