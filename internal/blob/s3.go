package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const s3KeyPrefix = "participants/"

// S3Options configures an S3-compatible endpoint (AWS, MinIO, R2...).
type S3Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

// S3 stores blobs as objects under a fixed key prefix.
type S3 struct {
	client *s3.Client
	bucket string
	log    *zap.Logger
}

// NewS3 builds a client and makes sure the bucket exists.
func NewS3(ctx context.Context, opts S3Options, log *zap.Logger) (*S3, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := &S3{client: client, bucket: opts.Bucket, log: log}
	if err := store.ensureBucket(ctx, opts.Region); err != nil {
		log.Warn("failed to ensure bucket exists", zap.String("bucket", opts.Bucket), zap.Error(err))
	}
	return store, nil
}

func (s *S3) ensureBucket(ctx context.Context, region string) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return err
	}
	s.log.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

func objectKey(name string) string {
	return s3KeyPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(name))
}

// Put stores data and returns the object key without the shared prefix.
func (s *S3) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := objectKey(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	s.log.Debug("object uploaded", zap.String("key", key), zap.Int("size", len(data)))
	return strings.TrimPrefix(key, s3KeyPrefix), nil
}

func (s *S3) Get(ctx context.Context, id string) (*Object, error) {
	key := path.Join(s3KeyPrefix, id)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", key, err)
	}
	return &Object{ContentType: aws.ToString(out.ContentType), Data: data}, nil
}

// Delete removes the object. S3 does not report missing keys on delete.
func (s *S3) Delete(ctx context.Context, id string) error {
	key := path.Join(s3KeyPrefix, id)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return nil
}
