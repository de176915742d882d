package invoice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Storage persists rendered invoices and returns where they ended up.
type Storage interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

// fileStorage writes invoices below a local directory.
type fileStorage struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStorage creates a storage rooted at dir.
func NewFileStorage(dir string, logger zerolog.Logger) Storage {
	return &fileStorage{
		dir:    dir,
		logger: logger.With().Str("component", "invoice-file-storage").Logger(),
	}
}

func (s *fileStorage) Put(ctx context.Context, key string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Error().Err(err).Str("file", path).Msg("failed to create invoice directory")
		return "", fmt.Errorf("failed to create invoice directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		s.logger.Error().Err(err).Str("file", path).Msg("failed to write invoice file")
		return "", fmt.Errorf("failed to write invoice file %s: %w", path, err)
	}

	s.logger.Debug().Str("file", path).Int("bytes", len(body)).Msg("invoice written")
	return path, nil
}

// s3Storage uploads invoices to an S3 bucket.
type s3Storage struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Storage creates an S3-backed storage using the default AWS credential chain.
func NewS3Storage(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Storage, error) {
	logger = logger.With().Str("component", "invoice-s3-storage").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 invoice storage initialised")

	return &s3Storage{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, body []byte) (string, error) {
	objectKey := s.prefix + key

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", objectKey).
			Msg("failed to put object to S3")
		return "", fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, objectKey, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

// fallbackStorage tries the primary storage first and falls back to the local one.
type fallbackStorage struct {
	primary  Storage
	fallback Storage
	logger   zerolog.Logger
}

// NewFallbackStorage writes to primary and, if that fails, to fallback. A nil primary uses fallback only.
func NewFallbackStorage(primary, fallback Storage, logger zerolog.Logger) Storage {
	return &fallbackStorage{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "invoice-fallback-storage").Logger(),
	}
}

func (s *fallbackStorage) Put(ctx context.Context, key string, body []byte) (string, error) {
	if s.primary != nil {
		path, err := s.primary.Put(ctx, key, body)
		if err == nil {
			return path, nil
		}
		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("primary invoice storage failed, falling back to local storage")
	}

	return s.fallback.Put(ctx, key, body)
}
