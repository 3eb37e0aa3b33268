package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/model"
)

// S3MediaStore uploads avatars and cover images to an S3-compatible bucket.
type S3MediaStore struct {
	api     *s3.Client
	bucket  string
	baseURL string
}

func NewS3MediaStore(ctx context.Context, cfg config.MediaConfig) (*S3MediaStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 media store: S3_BUCKET is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultS3BaseURL(endpoint, cfg.Region, cfg.Bucket, cfg.ForcePathStyle)
	}

	return &S3MediaStore{api: api, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

func (s *S3MediaStore) Store(ctx context.Context, upload model.MediaUpload) (*model.MediaRef, error) {
	if upload.Body == nil {
		return nil, ErrEmptyUpload
	}

	key := objectKey(upload.Filename)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   upload.Body,
	}
	if upload.ContentType != "" {
		input.ContentType = aws.String(upload.ContentType)
	}
	if upload.Size > 0 {
		input.ContentLength = aws.Int64(upload.Size)
	}

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 media store upload %s: %w", key, err)
	}

	return &model.MediaRef{URL: publicURL(s.baseURL, key), ID: key}, nil
}

func (s *S3MediaStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("s3 media store: empty id")
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("s3 media store delete %s: %w", id, err)
	}
	return nil
}

func defaultS3BaseURL(endpoint, region, bucket string, pathStyle bool) string {
	if endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	if pathStyle {
		return endpoint + "/" + bucket
	}
	scheme, host, found := strings.Cut(endpoint, "://")
	if !found {
		return "https://" + bucket + "." + endpoint
	}
	return scheme + "://" + bucket + "." + host
}
