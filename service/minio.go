package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
)

// Archiver keeps a copy of an exported PDF and returns a download link for it
type Archiver interface {
	Archive(ctx context.Context, sessionID, filename string, data []byte) (string, error)
}

// ExportArchive stores exported contracts in an S3-compatible bucket
type ExportArchive struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewExportArchive(cfg *config.MinioConfig) (*ExportArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ExportArchive{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ExportArchive) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Archive uploads a PDF under exports/<session>/<file> and returns a link to it,
// presigned unless the bucket is publicly readable.
func (s *ExportArchive) Archive(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	objectName := exportObjectName(sessionID, filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	url := s.PublicURL(objectName)
	if !s.config.PublicRead {
		if url, err = s.presignedURL(ctx, objectName); err != nil {
			return "", err
		}
	}

	logger.Info(ctx, "export archived", "object", objectName, "size", len(data))
	return url, nil
}

func (s *ExportArchive) presignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// PublicURL returns a public URL for the object (if bucket policy allows)
func (s *ExportArchive) PublicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}

func exportObjectName(sessionID, filename string) string {
	name := strings.ReplaceAll(path.Base(filename), " ", "_")
	return path.Join("exports", sessionID, name)
}
