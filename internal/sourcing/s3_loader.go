package sourcing

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader reads a JSON catalogue from an S3 bucket.
type s3Loader struct {
	client objectGetter
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates an S3-backed catalogue loader using the default AWS
// credential chain.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().Str("bucket", bucket).Str("region", region).Msg("S3 catalog loader initialised")
	return newS3Loader(s3.NewFromConfig(cfg), bucket, logger), nil
}

func newS3Loader(client objectGetter, bucket string, logger zerolog.Logger) *s3Loader {
	return &s3Loader{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "s3-catalog-loader").Logger(),
	}
}

func (l *s3Loader) Load(ctx context.Context, key string) (*Catalog, error) {
	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().Err(err).Str("bucket", l.bucket).Str("key", key).Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	gzipped := strings.HasSuffix(key, ".gz") || aws.ToString(result.ContentEncoding) == "gzip"
	catalog, err := decodeCatalog(result.Body, gzipped)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 catalog %s: %w", key, err)
	}

	l.logger.Info().Str("key", key).Int("brands", catalog.Size()).Msg("catalog loaded from S3")
	return catalog, nil
}

// fallbackLoader tries S3 first and falls back to the local file system.
type fallbackLoader struct {
	s3Loader   Loader
	fileLoader Loader
	s3Prefix   string
	s3Enabled  bool
	logger     zerolog.Logger
}

// NewFallbackLoader creates a loader that reads s3Prefix+path from S3 when
// enabled, and path from disk otherwise or on failure.
func NewFallbackLoader(s3Loader, fileLoader Loader, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3Loader:   s3Loader,
		fileLoader: fileLoader,
		s3Prefix:   s3Prefix,
		s3Enabled:  s3Enabled,
		logger:     logger.With().Str("component", "fallback-catalog-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) (*Catalog, error) {
	if l.s3Enabled && l.s3Loader != nil {
		key := l.s3Prefix + path
		catalog, err := l.s3Loader.Load(ctx, key)
		if err == nil {
			return catalog, nil
		}
		l.logger.Warn().Err(err).Str("s3_key", key).Msg("failed to load catalog from S3, falling back to local file")
	}

	return l.fileLoader.Load(ctx, path)
}
