// handlers/ingest_handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/services"
	"github.com/streamuz/ingest-service/store"

	"github.com/gocql/gocql"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, ref string) (*services.ProbeResult, error) {
	return &services.ProbeResult{Duration: 10, Width: 1280, Height: 720, FileSize: 1 << 20}, nil
}

type stubTranscoder struct{}

func (stubTranscoder) Transcode(ctx context.Context, video *models.Video, tier models.QualityTier,
	generation int64, progress func(float64)) (*models.VideoQuality, error) {
	return &models.VideoQuality{VideoID: video.ID, QualityName: tier.Label, AttemptGeneration: generation}, nil
}

func (stubTranscoder) Thumbnail(ctx context.Context, video *models.Video) (string, error) {
	return "", fmt.Errorf("stub")
}

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore, *queue.MemoryQueue) {
	t.Helper()
	memStore := store.NewMemoryStore()
	memQueue := queue.NewMemoryQueue(16)

	coordinator := services.NewCoordinatorService(memStore, memQueue, stubProber{}, stubTranscoder{},
		services.CoordinatorConfig{
			Tiers:    []models.QualityTier{{Label: "480p", Width: 854, Height: 480, Bitrate: "1000k", Required: true}},
			RetryMax: 1,
		})

	app := fiber.New()
	app.Post("/api/ingest/complete", IngestComplete(memStore, memQueue))
	app.Get("/api/ingest/:id", GetIngestStatus(memStore))
	app.Post("/api/ingest/:id/resubmit", Resubmit(coordinator))
	return app, memStore, memQueue
}

func TestIngestCompleteCreatesAndEnqueues(t *testing.T) {
	app, memStore, memQueue := newTestApp(t)

	videoID := gocql.TimeUUID()
	data, _ := json.Marshal(IngestCompleteRequest{
		VideoID:      videoID.String(),
		Title:        "yangi video",
		OriginalFile: "raw/yangi.mp4",
		Visibility:   "unlisted",
	})
	req := httptest.NewRequest("POST", "/api/ingest/complete", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	video, err := memStore.GetVideo(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploading, video.Status)
	assert.Equal(t, models.VisibilityUnlisted, video.Visibility)

	require.Equal(t, 1, memQueue.Len())
	job, err := memQueue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, videoID, job.VideoID)
	assert.Equal(t, video.AttemptGeneration, job.AttemptGeneration)
}

func TestIngestCompleteRejectsTerminalVideo(t *testing.T) {
	app, memStore, memQueue := newTestApp(t)

	video := &models.Video{
		ID:        gocql.TimeUUID(),
		Status:    models.StatusReady,
		CreatedAt: time.Now(),
	}
	require.NoError(t, memStore.CreateVideo(context.Background(), video))

	data, _ := json.Marshal(IngestCompleteRequest{VideoID: video.ID.String()})
	req := httptest.NewRequest("POST", "/api/ingest/complete", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, 0, memQueue.Len())
}

func TestGetIngestStatus(t *testing.T) {
	app, memStore, _ := newTestApp(t)

	video := &models.Video{
		ID:                 gocql.TimeUUID(),
		Status:             models.StatusProcessing,
		ProcessingProgress: 42,
		CreatedAt:          time.Now(),
	}
	require.NoError(t, memStore.CreateVideo(context.Background(), video))

	req := httptest.NewRequest("GET", "/api/ingest/"+video.ID.String(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Video models.Video `json:"video"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 42, body.Video.ProcessingProgress)
}

func TestGetIngestStatusNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/api/ingest/"+gocql.TimeUUID().String(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestResubmitHandler(t *testing.T) {
	app, memStore, memQueue := newTestApp(t)

	video := &models.Video{
		ID:                gocql.TimeUUID(),
		Status:            models.StatusFailed,
		ErrorMessage:      "transcoding failed for required tiers: 480p",
		OriginalFile:      "raw/x.mp4",
		AttemptGeneration: 1,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, memStore.CreateVideo(context.Background(), video))

	req := httptest.NewRequest("POST", "/api/ingest/"+video.ID.String()+"/resubmit", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	updated, err := memStore.GetVideo(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, updated.Status)
	assert.Equal(t, int64(2), updated.AttemptGeneration)
	assert.Empty(t, updated.ErrorMessage)
	assert.Equal(t, 1, memQueue.Len())
}

func TestResubmitRejectsNonFailed(t *testing.T) {
	app, memStore, _ := newTestApp(t)

	video := &models.Video{ID: gocql.TimeUUID(), Status: models.StatusReady, CreatedAt: time.Now()}
	require.NoError(t, memStore.CreateVideo(context.Background(), video))

	req := httptest.NewRequest("POST", "/api/ingest/"+video.ID.String()+"/resubmit", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}
