package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ClientConfig is passed explicitly to every AWS-backed adapter.
type ClientConfig struct {
	Region    string
	Anonymous bool
	Timeout   time.Duration
}

// LoadAWSConfig resolves SDK configuration from the ambient credential chain, or with
// anonymous credentials when cfg.Anonymous is set.
func LoadAWSConfig(ctx context.Context, cfg ClientConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Anonymous {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return awsCfg, nil
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store is the s3:// backend.
type S3Store struct {
	client s3API
}

func NewS3Store(awsCfg aws.Config) *S3Store {
	return &S3Store{client: s3.NewFromConfig(awsCfg)}
}

func (s *S3Store) location(uri string) (Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeS3 {
		return Location{}, fmt.Errorf("%w: %s", ErrUnsupported, loc.Scheme)
	}
	return loc, nil
}

func (s *S3Store) Put(ctx context.Context, uri string, body io.Reader) error {
	loc, err := s.location(uri)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   body,
		ACL:    types.ObjectCannedACLBucketOwnerFullControl,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", uri, err)
	}
	return nil
}

func (s *S3Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := s.location(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("failed to get %s: %w", uri, err)
	}
	return out.Body, nil
}

func (s *S3Store) Exists(ctx context.Context, uri string) (bool, error) {
	loc, err := s.location(uri)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", uri, err)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
