package downloads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileURLSigner turns a stored file key into a fetchable URL.
type FileURLSigner interface {
	SignedURL(ctx context.Context, fileKey string) (string, error)
}

// S3Presigner issues time-limited S3 GET URLs for library files.
type S3Presigner struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewS3Presigner wraps the S3 client. expiry defaults to 15 minutes.
func NewS3Presigner(client *s3.Client, bucket string, expiry time.Duration) *S3Presigner {
	if client == nil || bucket == "" {
		return nil
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Presigner{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  expiry,
	}
}

// SignedURL presigns a GET for the object.
func (p *S3Presigner) SignedURL(ctx context.Context, fileKey string) (string, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(fileKey),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", fmt.Errorf("downloads: presign %s: %w", fileKey, err)
	}
	return req.URL, nil
}

var _ FileURLSigner = (*S3Presigner)(nil)
