package storage

import (
	"context"
	"fmt"
	"time"

	"cuebase/config"
	"cuebase/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveMirror copies ingested files to an S3-compatible bucket as an
// off-machine backup of the content store. Mirroring is best-effort: a
// failure is logged and never blocks or fails an ingest.
type ArchiveMirror struct {
	client *minio.Client
	bucket string
}

// NewArchiveMirror connects to MinIO and ensures the archive bucket exists.
func NewArchiveMirror(cfg *config.Config) (*ArchiveMirror, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create archive bucket: %w", err)
		}
		logger.Info("Created archive bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &ArchiveMirror{client: client, bucket: cfg.MinioBucket}, nil
}

// Mirror uploads one stored file. Already-uploaded objects are skipped via a
// cheap stat; content-addressed names make the upload idempotent anyway.
func (m *ArchiveMirror) Mirror(ctx context.Context, localPath, objectName string) error {
	if _, err := m.client.StatObject(ctx, m.bucket, objectName, minio.StatObjectOptions{}); err == nil {
		return nil
	}

	_, err := m.client.FPutObject(ctx, m.bucket, objectName, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to mirror %s to bucket %s: %w", objectName, m.bucket, err)
	}
	logger.Debug("Mirrored file to archive",
		logger.String("object", objectName), logger.String("bucket", m.bucket))
	return nil
}
