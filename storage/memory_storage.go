// storage/memory_storage.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/streamuz/ingest-service/models"
)

// MemoryGateway - testlar uchun in-memory fake.
// FailNext orqali vaqtinchalik storage xatosini simulyatsiya qilish mumkin.
type MemoryGateway struct {
	mu       sync.Mutex
	objects  map[string][]byte // "bucket/object" -> data
	FailNext int               // keyingi N ta operatsiya StorageUnavailable qaytaradi
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{objects: make(map[string][]byte)}
}

func (g *MemoryGateway) key(bucket, object string) string {
	return bucket + "/" + object
}

func (g *MemoryGateway) fail() error {
	if g.FailNext > 0 {
		g.FailNext--
		return fmt.Errorf("%w: injected", models.ErrStorageUnavailable)
	}
	return nil
}

func (g *MemoryGateway) Put(ctx context.Context, bucket, object string, r io.Reader, size int64, contentType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	g.objects[g.key(bucket, object)] = data
	return nil
}

func (g *MemoryGateway) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return nil, err
	}
	data, ok := g.objects[g.key(bucket, object)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s topilmadi", models.ErrStorageUnavailable, bucket, object)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (g *MemoryGateway) Delete(ctx context.Context, bucket, object string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return err
	}
	delete(g.objects, g.key(bucket, object))
	return nil
}

func (g *MemoryGateway) Exists(ctx context.Context, bucket, object string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail(); err != nil {
		return false, err
	}
	_, ok := g.objects[g.key(bucket, object)]
	return ok, nil
}

func (g *MemoryGateway) PresignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s/%s?expires=%s", bucket, object, expiry), nil
}
