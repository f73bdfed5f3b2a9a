package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/internal/validation"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

type localStore struct {
	path string
}

// put writes through a temp file in the target directory and renames it
// into place, so readers never see a partial image.
func (s localStore) put(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sqlerrors.NewIO("create directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return sqlerrors.NewIO("create temp file", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return sqlerrors.NewIO("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return sqlerrors.NewIO("close", tmpPath, err)
	}
	if err := osRename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return sqlerrors.NewIO("rename", s.path, err)
	}
	return nil
}

func (s localStore) get(context.Context) ([]byte, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, sqlerrors.NewIO("stat", s.path, err)
	}
	if info.Size() > validation.MaxImageSize {
		return nil, fmt.Errorf("%s: %d bytes exceeds image limit", s.path, info.Size())
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, sqlerrors.NewIO("read", s.path, err)
	}
	return data, nil
}

// S3Config contains S3 authentication configuration.
type S3Config struct {
	Region    string
	Endpoint  string // Optional: custom S3-compatible endpoint
	AccessKey string
	SecretKey string
}

// objectAPI is the part of the S3 client snapshots use.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ objectAPI = (*s3.Client)(nil)

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

type s3Store struct {
	objects objectAPI
	bucket  string
	key     string
}

func (s *s3Store) put(ctx context.Context, data []byte) error {
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *s3Store) get(ctx context.Context) ([]byte, error) {
	resp, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, validation.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if int64(len(data)) > validation.MaxImageSize {
		return nil, errors.New("s3 object exceeds image limit")
	}
	return data, nil
}
