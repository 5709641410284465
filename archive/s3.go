package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rasnes/dhis2-duckdb-framework/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver keeps a copy of every produced extract in an S3 bucket.
type S3Archiver struct {
	Client putObjectAPI
	Bucket string
	Prefix string
	Logger *slog.Logger
}

func NewS3Archiver(ctx context.Context, cfg *config.ArchiveConfig, logger *slog.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive.bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &S3Archiver{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Logger: logger,
	}, nil
}

// Key builds the object key: prefix, then parts, then the file name.
func (a *S3Archiver) Key(file string, parts ...string) string {
	elems := make([]string, 0, len(parts)+2)
	if p := strings.Trim(a.Prefix, "/"); p != "" {
		elems = append(elems, p)
	}
	for _, part := range parts {
		if part != "" {
			elems = append(elems, part)
		}
	}
	elems = append(elems, filepath.Base(file))
	return path.Join(elems...)
}

// Archive uploads file under Key(file, parts...) and returns the s3:// URI.
func (a *S3Archiver) Archive(ctx context.Context, file string, parts ...string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", file, err)
	}
	defer f.Close()

	key := a.Key(file, parts...)
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s to s3://%s/%s: %w", file, a.Bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", a.Bucket, key)
	a.Logger.Info(fmt.Sprintf("Archived %s", filepath.Base(file)), "uri", uri)
	return uri, nil
}
