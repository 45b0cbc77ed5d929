// handlers/ingest_handlers.go
package handlers

import (
	"errors"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/services"
	"github.com/streamuz/ingest-service/store"

	"github.com/gocql/gocql"
	"github.com/gofiber/fiber/v2"
)

// Upload collaboratoridan keladigan signal. Video satri upload boshida
// yaratilgan bo'lishi kerak; bo'lmasa original_file bilan shu yerda
// yaratiladi (status=uploading).
type IngestCompleteRequest struct {
	VideoID      string `json:"video_id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	OriginalFile string `json:"original_file"`
	Visibility   string `json:"visibility"`
}

// IngestComplete - upload tugadi signali, jobni queuega qo'yadi
func IngestComplete(vs store.VideoStore, q queue.JobQueue) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req IngestCompleteRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Body parse xatosi"})
		}

		videoID, err := gocql.ParseUUID(req.VideoID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Noto'g'ri video ID"})
		}

		video, err := vs.GetVideo(c.Context(), videoID)
		if errors.Is(err, models.ErrVideoNotFound) {
			video, err = createVideo(c, vs, videoID, req)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": err.Error()})
			}
		} else if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		if video.Status != models.StatusUploading {
			// Duplicate signal - job baribir idempotent, lekin
			// terminal videoni qayta navbatga qo'ymaymiz
			return c.Status(409).JSON(fiber.Map{
				"error":  "Video uploading holatida emas",
				"status": video.Status,
			})
		}

		job := models.IngestJob{
			VideoID:           video.ID,
			AttemptGeneration: video.AttemptGeneration,
			OriginalFileRef:   video.OriginalFile,
			EnqueuedAt:        time.Now(),
		}
		if err := q.Enqueue(c.Context(), job); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		return c.Status(202).JSON(fiber.Map{
			"message": "Processing navbatga qo'yildi",
			"video":   video,
		})
	}
}

func createVideo(c *fiber.Ctx, vs store.VideoStore, videoID gocql.UUID, req IngestCompleteRequest) (*models.Video, error) {
	if req.OriginalFile == "" {
		return nil, errors.New("video topilmadi va original_file berilmagan")
	}

	visibility := models.Visibility(req.Visibility)
	if !visibility.Valid() {
		visibility = models.VisibilityPublic
	}

	userID, err := gocql.ParseUUID(req.UserID)
	if err != nil {
		userID = gocql.UUID{}
	}

	video := &models.Video{
		ID:           videoID,
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		OriginalFile: req.OriginalFile,
		Status:       models.StatusUploading,
		Visibility:   visibility,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := vs.CreateVideo(c.Context(), video); err != nil {
		return nil, err
	}
	return video, nil
}

// GetIngestStatus - status + progress, read-only
func GetIngestStatus(vs store.VideoStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		videoID, err := gocql.ParseUUID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Noto'g'ri video ID"})
		}

		video, err := vs.GetVideo(c.Context(), videoID)
		if errors.Is(err, models.ErrVideoNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Video topilmadi"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		qualities, err := vs.ListQualities(c.Context(), videoID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{
			"video":     video,
			"qualities": qualities,
		})
	}
}

// Resubmit - failed videoni qayta navbatga qo'yish.
// Userga ochiq yagona recovery yo'li.
func Resubmit(coordinator *services.CoordinatorService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		videoID, err := gocql.ParseUUID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Noto'g'ri video ID"})
		}

		video, err := coordinator.Resubmit(c.Context(), videoID)
		if errors.Is(err, models.ErrVideoNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Video topilmadi"})
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		return c.Status(202).JSON(fiber.Map{
			"message": "Video qayta navbatga qo'yildi",
			"video":   video,
		})
	}
}
