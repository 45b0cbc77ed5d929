// database/minio.go
package database

import (
	"context"

	"github.com/streamuz/ingest-service/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	// Bucket yaratish
	ctx := context.Background()
	buckets := []string{
		cfg.RawBucket,       // original fayllar
		cfg.ProcessedBucket, // transcode qilingan renditionlar
		cfg.ThumbnailBucket, // thumbnaillar
	}

	for _, bucketName := range buckets {
		exists, err := client.BucketExists(ctx, bucketName)
		if err != nil {
			return nil, err
		}

		if !exists {
			err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
			if err != nil {
				return nil, err
			}
			logrus.Printf("MinIO bucket yaratildi: %s", bucketName)
		}
	}

	// Processed bucket uchun public read policy
	policy := `{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::` + cfg.ProcessedBucket + `/*"]
			}
		]
	}`

	err = client.SetBucketPolicy(ctx, cfg.ProcessedBucket, policy)
	if err != nil {
		logrus.Printf("Policy o'rnatilmadi: %v", err)
	}

	logrus.Println("MinIO ulanish muvaffaqiyatli")
	return client, nil
}
