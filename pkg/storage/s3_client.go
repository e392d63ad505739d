package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3-backed content store
type S3Config struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// S3Uploader is the subset of manager.Uploader the store uses
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Client stores payloads in a bucket under their CID, so objects are content addressed
// and republishing identical bytes rewrites the same key.
type S3Client struct {
	uploader S3Uploader
	bucket   string
	prefix   string
}

// NewS3Client loads AWS configuration and creates a content store for config.Bucket
func NewS3Client(ctx context.Context, config S3Config) (*S3Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ClientWithUploader(manager.NewUploader(client), config.Bucket, config.Prefix), nil
}

// NewS3ClientWithUploader creates a content store on top of an existing uploader
func NewS3ClientWithUploader(uploader S3Uploader, bucket, prefix string) *S3Client {
	return &S3Client{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
	}
}

// Publish uploads obj under its CID and returns the CID
func (c *S3Client) Publish(ctx context.Context, obj Object) (string, error) {
	id, err := ComputeCID(obj.Data)
	if err != nil {
		return "", err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.Key(id)),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"name": obj.Name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s: %w", id, c.bucket, err)
	}
	return id, nil
}

// Key returns the object key for a CID
func (c *S3Client) Key(cid string) string {
	return c.prefix + cid
}
