// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"io"

	appconfig "finance-gamification/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the slice of the S3 API the catalog fetch needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// R2Store reads objects from one Cloudflare R2 bucket.
type R2Store struct {
	client ObjectGetter
	bucket string
}

// NewR2Store builds an S3 client against the account's R2 endpoint.
func NewR2Store(ctx context.Context, cfg appconfig.R2Config) (*R2Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return NewR2StoreWithClient(client, cfg.Bucket), nil
}

// NewR2StoreWithClient wraps an existing client.
func NewR2StoreWithClient(client ObjectGetter, bucket string) *R2Store {
	return &R2Store{client: client, bucket: bucket}
}

// FetchObject downloads key from the bucket.
func (r *R2Store) FetchObject(ctx context.Context, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from R2: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from R2: %w", key, err)
	}
	return data, nil
}
