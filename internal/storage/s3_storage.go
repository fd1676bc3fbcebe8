package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

const (
	splitReportFolder = "split-reports"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Storage struct {
	client  objectPutter
	bucket  string
	region  string
	baseURL string
}

func NewS3Storage(region, bucket, accessKeyID, secretAccessKey, baseURL string) *S3Storage {
	var cfg aws.Config
	var err error

	// If credentials are provided, use them. Otherwise, use default credential chain
	if accessKeyID != "" && secretAccessKey != "" {
		cfg = aws.Config{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				accessKeyID,
				secretAccessKey,
				"",
			),
		}
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(region),
		)
		if err != nil {
			cfg = aws.Config{
				Region: region,
			}
		}
	}

	return &S3Storage{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}
}

// ArchiveSplitReport uploads a split outcome workbook and returns its URL.
func (s *S3Storage) ArchiveSplitReport(ctx context.Context, orderID uint, workbook []byte) (string, error) {
	key := fmt.Sprintf("%s/%d/%s-%s.xlsx", splitReportFolder, orderID,
		time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(workbook),
		ContentType:   aws.String(xlsxContentType),
		ContentLength: aws.Int64(int64(len(workbook))),
	})
	if err != nil {
		logger.Error("Failed to upload split report", err, map[string]interface{}{
			"order_id": orderID,
			"key":      key,
		})
		return "", fmt.Errorf("failed to upload split report: %w", err)
	}

	url := s.fileURL(key)
	logger.Info("Split report archived", map[string]interface{}{
		"order_id": orderID,
		"url":      url,
	})
	return url, nil
}

func (s *S3Storage) fileURL(key string) string {
	if s.baseURL != "" {
		// CloudFront or custom domain
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
