// storage/storage.go
package storage

import (
	"context"
	"io"
	"time"
)

// Gateway - blob storage uchun interface. Coordinator va workerlar
// MinIO bilan to'g'ridan-to'g'ri emas, faqat shu interface orqali ishlaydi,
// testlarda in-memory fake ishlatiladi.
type Gateway interface {
	Put(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, object string) error
	Exists(ctx context.Context, bucket, object string) (bool, error)
	PresignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
}
