// store/cassandra_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/streamuz/ingest-service/models"

	"github.com/gocql/gocql"
)

// CassandraStore - VideoStore'ning Cassandra implementatsiyasi.
// Barcha video yozuvlari lightweight transaction (IF version = ?) bilan
// guard qilinadi.
type CassandraStore struct {
	session *gocql.Session
}

func NewCassandraStore(session *gocql.Session) *CassandraStore {
	return &CassandraStore{session: session}
}

func (s *CassandraStore) CreateVideo(ctx context.Context, v *models.Video) error {
	query := `INSERT INTO videos (id, user_id, title, description, thumbnail_path,
		original_file, duration, width, height, file_size, status, visibility,
		processing_progress, error_message, comments_count, attempt_generation,
		version, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`

	applied, err := s.session.Query(query,
		v.ID, v.UserID, v.Title, v.Description, v.ThumbnailPath,
		v.OriginalFile, v.Duration, v.Width, v.Height, v.FileSize,
		string(v.Status), string(v.Visibility),
		v.ProcessingProgress, v.ErrorMessage, v.CommentsCount, v.AttemptGeneration,
		v.Version, v.CreatedAt, v.UpdatedAt, publishedAtValue(v.PublishedAt),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("video saqlash xatosi: %w", err)
	}
	if !applied {
		return fmt.Errorf("video allaqachon mavjud: %s", v.ID)
	}
	return nil
}

func (s *CassandraStore) GetVideo(ctx context.Context, id gocql.UUID) (*models.Video, error) {
	var v models.Video
	var status, visibility string
	var publishedAt time.Time

	query := `SELECT id, user_id, title, description, thumbnail_path, original_file,
		duration, width, height, file_size, status, visibility, processing_progress,
		error_message, comments_count, attempt_generation, version,
		created_at, updated_at, published_at FROM videos WHERE id = ?`

	err := s.session.Query(query, id).WithContext(ctx).Scan(
		&v.ID, &v.UserID, &v.Title, &v.Description, &v.ThumbnailPath, &v.OriginalFile,
		&v.Duration, &v.Width, &v.Height, &v.FileSize, &status, &visibility,
		&v.ProcessingProgress, &v.ErrorMessage, &v.CommentsCount,
		&v.AttemptGeneration, &v.Version, &v.CreatedAt, &v.UpdatedAt, &publishedAt,
	)
	if err == gocql.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrVideoNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("video olish xatosi: %w", err)
	}

	v.Status = models.Status(status)
	v.Visibility = models.Visibility(visibility)
	if !publishedAt.IsZero() {
		v.PublishedAt = &publishedAt
	}
	return &v, nil
}

// UpdateVideo - IF version = ? bilan compare-and-swap. Version har
// muvaffaqiyatli yozuvda bittaga oshadi.
func (s *CassandraStore) UpdateVideo(ctx context.Context, v *models.Video, expectedVersion int64) error {
	newVersion := expectedVersion + 1
	v.UpdatedAt = time.Now()

	query := `UPDATE videos SET title = ?, description = ?, thumbnail_path = ?,
		duration = ?, width = ?, height = ?, file_size = ?, status = ?,
		visibility = ?, processing_progress = ?, error_message = ?,
		comments_count = ?, attempt_generation = ?, version = ?,
		updated_at = ?, published_at = ?
		WHERE id = ? IF version = ?`

	applied, err := s.session.Query(query,
		v.Title, v.Description, v.ThumbnailPath,
		v.Duration, v.Width, v.Height, v.FileSize, string(v.Status),
		string(v.Visibility), v.ProcessingProgress, v.ErrorMessage,
		v.CommentsCount, v.AttemptGeneration, newVersion,
		v.UpdatedAt, publishedAtValue(v.PublishedAt),
		v.ID, expectedVersion,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("video yangilash xatosi: %w", err)
	}
	if !applied {
		return fmt.Errorf("%w: video %s, version %d", models.ErrVersionConflict, v.ID, expectedVersion)
	}

	v.Version = newVersion
	return nil
}

// InsertQuality - IF NOT EXISTS bilan append-only insert.
// applied=false duplicate degani (retry qilingan worker poygasi),
// bu xato emas.
func (s *CassandraStore) InsertQuality(ctx context.Context, q *models.VideoQuality) (bool, error) {
	query := `INSERT INTO video_qualities (video_id, quality_name, width, height,
		bitrate, file_path, hls_playlist_path, file_size, attempt_generation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`

	applied, err := s.session.Query(query,
		q.VideoID, q.QualityName, q.Width, q.Height,
		q.Bitrate, q.FilePath, q.HLSPlaylistPath, q.FileSize,
		q.AttemptGeneration, q.CreatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, fmt.Errorf("rendition saqlash xatosi: %w", err)
	}
	return applied, nil
}

func (s *CassandraStore) ListQualities(ctx context.Context, videoID gocql.UUID) ([]models.VideoQuality, error) {
	query := `SELECT video_id, quality_name, width, height, bitrate, file_path,
		hls_playlist_path, file_size, attempt_generation, created_at
		FROM video_qualities WHERE video_id = ?`

	iter := s.session.Query(query, videoID).WithContext(ctx).Iter()

	var qualities []models.VideoQuality
	var q models.VideoQuality

	for iter.Scan(&q.VideoID, &q.QualityName, &q.Width, &q.Height, &q.Bitrate,
		&q.FilePath, &q.HLSPlaylistPath, &q.FileSize, &q.AttemptGeneration, &q.CreatedAt) {
		qualities = append(qualities, q)
		q = models.VideoQuality{}
	}

	if err := iter.Close(); err != nil {
		return nil, err
	}
	return qualities, nil
}

// DeleteVideo - video va unga tegishli renditionlarni o'chiradi
// (cascade delete'ning Cassandra varianti).
func (s *CassandraStore) DeleteVideo(ctx context.Context, id gocql.UUID) error {
	if err := s.session.Query(`DELETE FROM video_qualities WHERE video_id = ?`, id).WithContext(ctx).Exec(); err != nil {
		return err
	}
	return s.session.Query(`DELETE FROM videos WHERE id = ?`, id).WithContext(ctx).Exec()
}

// Cassandra null TIMESTAMP sifatida zero time yozamiz
func publishedAtValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
