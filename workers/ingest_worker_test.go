// workers/ingest_worker_test.go
package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/services"
	"github.com/streamuz/ingest-service/store"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okProber struct{}

func (okProber) Probe(ctx context.Context, ref string) (*services.ProbeResult, error) {
	return &services.ProbeResult{Duration: 10, Width: 1280, Height: 720, FileSize: 1 << 20}, nil
}

type okTranscoder struct{}

func (okTranscoder) Transcode(ctx context.Context, video *models.Video, tier models.QualityTier,
	generation int64, progress func(float64)) (*models.VideoQuality, error) {
	return &models.VideoQuality{VideoID: video.ID, QualityName: tier.Label, AttemptGeneration: generation}, nil
}

func (okTranscoder) Thumbnail(ctx context.Context, video *models.Video) (string, error) {
	return fmt.Sprintf("%s/thumbnail.jpg", video.ID), nil
}

// ackRecordingQueue - Ack chaqiruvlarini yozib boradi
type ackRecordingQueue struct {
	*queue.MemoryQueue
	mu    sync.Mutex
	acked []models.IngestJob
}

func (q *ackRecordingQueue) Ack(ctx context.Context, job models.IngestJob) error {
	q.mu.Lock()
	q.acked = append(q.acked, job)
	q.mu.Unlock()
	return nil
}

func (q *ackRecordingQueue) ackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

// downStore - har doim infra xatosi qaytaradi
type downStore struct {
	*store.MemoryStore
}

func (s *downStore) GetVideo(ctx context.Context, id gocql.UUID) (*models.Video, error) {
	return nil, fmt.Errorf("cassandra ulanish xatosi")
}

func testPoolTiers() []models.QualityTier {
	return []models.QualityTier{
		{Label: "480p", Width: 854, Height: 480, Bitrate: "1000k", Required: true},
	}
}

func TestWorkerAcksAfterSuccess(t *testing.T) {
	memStore := store.NewMemoryStore()
	q := &ackRecordingQueue{MemoryQueue: queue.NewMemoryQueue(4)}
	coordinator := services.NewCoordinatorService(memStore, q, okProber{}, okTranscoder{},
		services.CoordinatorConfig{Tiers: testPoolTiers(), RetryMax: 1, MaxConcurrent: 2})

	video := &models.Video{
		ID:                gocql.TimeUUID(),
		Status:            models.StatusUploading,
		Visibility:        models.VisibilityPublic,
		OriginalFile:      "raw/x.mp4",
		AttemptGeneration: 1,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, memStore.CreateVideo(context.Background(), video))
	require.NoError(t, q.Enqueue(context.Background(), models.IngestJob{
		VideoID:           video.ID,
		AttemptGeneration: 1,
		OriginalFileRef:   video.OriginalFile,
		EnqueuedAt:        time.Now(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewIngestWorkerPool(1, q, coordinator)
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		got, err := memStore.GetVideo(context.Background(), video.ID)
		return err == nil && got.Status == models.StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	// Ack faqat muvaffaqiyatli jobdan keyin
	require.Eventually(t, func() bool { return q.ackCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Stop()
}

func TestWorkerDoesNotAckOnInfraError(t *testing.T) {
	failing := &downStore{MemoryStore: store.NewMemoryStore()}
	q := &ackRecordingQueue{MemoryQueue: queue.NewMemoryQueue(4)}
	coordinator := services.NewCoordinatorService(failing, q, okProber{}, okTranscoder{},
		services.CoordinatorConfig{Tiers: testPoolTiers(), RetryMax: 1, MaxConcurrent: 2})

	require.NoError(t, q.Enqueue(context.Background(), models.IngestJob{
		VideoID:           gocql.TimeUUID(),
		AttemptGeneration: 1,
		EnqueuedAt:        time.Now(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewIngestWorkerPool(1, q, coordinator)
	pool.Start(ctx)

	// Job olingan, lekin Process infra xatosi bilan yiqilgan - ack bo'lmaydi,
	// xabar redelivery uchun navbatda qoladi
	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, q.ackCount())

	cancel()
	pool.Stop()
}
