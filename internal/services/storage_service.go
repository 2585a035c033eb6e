// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

// StorageService wraps the object store holding delivery masters (mp3/wav/
// stem archives). Buyers never get raw bucket URLs, only short-lived signed
// links minted at delivery time.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

const deliveryLinkTTL = 7 * 24 * time.Hour

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// DeliveryLinks mints a signed download URL for every format the offer
// delivers.
func (s *StorageService) DeliveryLinks(offer *models.LicenseOffer) (map[string]string, error) {
	links := make(map[string]string, len(offer.Formats))

	for _, format := range offer.Formats {
		key, ok := offer.FileKey(format)
		if !ok {
			return nil, fmt.Errorf("offer %s has no file for format %s", offer.ID, format)
		}

		url, err := s.GeneratePresignedURL(key, deliveryLinkTTL)
		if err != nil {
			return nil, err
		}
		links[string(format)] = url
	}

	return links, nil
}

func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("object storage not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

// UploadDeliveryMaster stores a new audio master under the delivery prefix.
func (s *StorageService) UploadDeliveryMaster(key, contentType string, data []byte) error {
	if s.s3Client == nil {
		return fmt.Errorf("object storage not configured")
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

func (s *StorageService) DeleteFile(key string) error {
	if s.s3Client == nil {
		return fmt.Errorf("object storage not configured")
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}
