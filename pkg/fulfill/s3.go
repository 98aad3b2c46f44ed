package fulfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Receipts.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Receipts stores receipt documents in an S3 bucket under
// receipts/{orderId}.json.
type S3Receipts struct {
	client S3API
	bucket string
}

// NewS3Receipts creates a ReceiptStore writing to the given bucket.
func NewS3Receipts(client S3API, bucket string) *S3Receipts {
	return &S3Receipts{client: client, bucket: bucket}
}

// NewS3ReceiptsFromConfig creates an S3Receipts using the default AWS
// configuration chain (environment, shared config, instance role).
func NewS3ReceiptsFromConfig(ctx context.Context, bucket string) (*S3Receipts, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Receipts(s3.NewFromConfig(cfg), bucket), nil
}

var _ ReceiptStore = (*S3Receipts)(nil)

func (s *S3Receipts) Put(ctx context.Context, r Receipt) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	key := "receipts/" + r.OrderID + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put receipt: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
