// store/store.go
package store

import (
	"context"

	"github.com/streamuz/ingest-service/models"

	"github.com/gocql/gocql"
)

// VideoStore - metadata store interface. Coordinator faqat shu orqali
// yozadi, testlarda MemoryStore ishlatiladi.
//
// UpdateVideo optimistic concurrency bilan ishlaydi: expectedVersion
// mos kelmasa ErrVersionConflict qaytadi va caller yangi read bilan
// qayta urinadi. InsertQuality append-only, IF NOT EXISTS semantikasi
// bilan (video_id, quality_name) uniqueness'ni ta'minlaydi.
type VideoStore interface {
	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, id gocql.UUID) (*models.Video, error)
	UpdateVideo(ctx context.Context, v *models.Video, expectedVersion int64) error
	InsertQuality(ctx context.Context, q *models.VideoQuality) (bool, error)
	ListQualities(ctx context.Context, videoID gocql.UUID) ([]models.VideoQuality, error)
	DeleteVideo(ctx context.Context, id gocql.UUID) error
}
