// storage/minio_storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/streamuz/ingest-service/models"

	"github.com/minio/minio-go/v7"
)

// MinIOGateway - Gateway'ning MinIO implementatsiyasi
type MinIOGateway struct {
	client *minio.Client
}

func NewMinIOGateway(client *minio.Client) *MinIOGateway {
	return &MinIOGateway{client: client}
}

func (g *MinIOGateway) Put(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) error {
	_, err := g.client.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	return nil
}

func (g *MinIOGateway) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	// GetObject lazy, birinchi read'gacha xato chiqmasligi mumkin
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("%w: stat %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	return obj, nil
}

func (g *MinIOGateway) Delete(ctx context.Context, bucket, object string) error {
	err := g.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	return nil
}

func (g *MinIOGateway) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := g.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	return true, nil
}

func (g *MinIOGateway) PresignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: presign %s/%s: %v", models.ErrStorageUnavailable, bucket, object, err)
	}
	return u.String(), nil
}
