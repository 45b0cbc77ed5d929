// store/memory_store.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streamuz/ingest-service/models"

	"github.com/gocql/gocql"
)

// MemoryStore - testlar uchun in-memory VideoStore.
// Cassandra implementatsiyasi bilan bir xil CAS semantikasi.
type MemoryStore struct {
	mu        sync.Mutex
	videos    map[gocql.UUID]models.Video
	qualities map[gocql.UUID]map[string]models.VideoQuality
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:    make(map[gocql.UUID]models.Video),
		qualities: make(map[gocql.UUID]map[string]models.VideoQuality),
	}
}

func (s *MemoryStore) CreateVideo(ctx context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; ok {
		return fmt.Errorf("video allaqachon mavjud: %s", v.ID)
	}
	s.videos[v.ID] = *v
	return nil
}

func (s *MemoryStore) GetVideo(ctx context.Context, id gocql.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrVideoNotFound, id)
	}
	copy := v
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		copy.PublishedAt = &t
	}
	return &copy, nil
}

func (s *MemoryStore) UpdateVideo(ctx context.Context, v *models.Video, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.videos[v.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrVideoNotFound, v.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: video %s, version %d", models.ErrVersionConflict, v.ID, expectedVersion)
	}
	v.Version = expectedVersion + 1
	v.UpdatedAt = time.Now()
	s.videos[v.ID] = *v
	return nil
}

func (s *MemoryStore) InsertQuality(ctx context.Context, q *models.VideoQuality) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.qualities[q.VideoID]
	if !ok {
		byName = make(map[string]models.VideoQuality)
		s.qualities[q.VideoID] = byName
	}
	if _, exists := byName[q.QualityName]; exists {
		return false, nil
	}
	byName[q.QualityName] = *q
	return true, nil
}

func (s *MemoryStore) ListQualities(ctx context.Context, videoID gocql.UUID) ([]models.VideoQuality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.VideoQuality
	for _, q := range s.qualities[videoID] {
		out = append(out, q)
	}
	return out, nil
}

func (s *MemoryStore) DeleteVideo(ctx context.Context, id gocql.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videos, id)
	delete(s.qualities, id)
	return nil
}
