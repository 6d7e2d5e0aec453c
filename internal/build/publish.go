package build

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/preload/internal/config"
	"github.com/vango-dev/preload/internal/errors"
)

// Cache-Control values for published artifacts.
const (
	CacheImmutable  = "public, max-age=31536000, immutable"
	CacheRevalidate = "no-cache"
)

// ObjectUploader stores objects. *s3.Client satisfies it.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads build artifacts to a bucket.
type Publisher struct {
	uploader ObjectUploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewPublisher creates a publisher for the bucket and key prefix in cfg.
func NewPublisher(uploader ObjectUploader, cfg config.PublishConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("E120").
			WithDetail("publish.bucket is not set").
			WithSuggestion("Set publish.bucket in preload.json or pass --bucket")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		logger:   logger.With("component", "publish"),
	}, nil
}

// NewS3Client builds an S3 client from cfg. Credentials are read from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
func NewS3Client(cfg config.PublishConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
		UsePathStyle: cfg.PathStyleEnabled(),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials(ctx context.Context) (aws.Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("E120").
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}

// Uploaded describes one published object.
type Uploaded struct {
	Key          string
	CacheControl string
	Size         int64
}

// Publish uploads every manifest artifact and then the manifest itself.
// Artifacts are uploaded in name order.
func (p *Publisher) Publish(ctx context.Context, outputDir string, manifest *Manifest) ([]Uploaded, error) {
	if manifest == nil || len(manifest.Artifacts) == 0 {
		return nil, errors.New("E121").WithSuggestion("Run 'preload build' first")
	}

	names := make([]string, 0, len(manifest.Artifacts))
	for name := range manifest.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	var uploaded []Uploaded
	for _, name := range names {
		a := manifest.Artifacts[name]
		cache := CacheRevalidate
		if a.Immutable {
			cache = CacheImmutable
		}
		u, err := p.upload(ctx, outputDir, a.Path, a.ContentType, cache)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, u)
	}

	rel := path.Join(ArtifactDir, ArtifactManifest)
	u, err := p.upload(ctx, outputDir, rel, contentType(rel), CacheRevalidate)
	if err != nil {
		return uploaded, err
	}
	return append(uploaded, u), nil
}

func (p *Publisher) upload(ctx context.Context, outputDir, rel, contentType, cacheControl string) (Uploaded, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(rel)))
	if err != nil {
		return Uploaded{}, errors.New("E121").WithDetail("Missing artifact " + rel).Wrap(err)
	}

	key := p.prefix + rel
	_, err = p.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return Uploaded{}, errors.New("E120").WithDetail("Uploading s3://" + p.bucket + "/" + key).Wrap(err)
	}

	p.logger.Debug("uploaded", "key", key, "bytes", len(data))
	return Uploaded{Key: key, CacheControl: cacheControl, Size: int64(len(data))}, nil
}
