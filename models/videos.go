// models/videos.go
package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Video - yuklangan asset uchun bitta yozuv
type Video struct {
	ID                 gocql.UUID `json:"id"`
	UserID             gocql.UUID `json:"user_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	ThumbnailPath      string     `json:"thumbnail_path"`
	OriginalFile       string     `json:"original_file"` // videos-raw bucketdagi obyekt yo'li
	Duration           int        `json:"duration"`      // soniyada
	Width              int        `json:"width"`
	Height             int        `json:"height"`
	FileSize           int64      `json:"file_size"`
	Status             Status     `json:"status"`
	Visibility         Visibility `json:"visibility"`
	ProcessingProgress int        `json:"processing_progress"` // 0-100
	ErrorMessage       string     `json:"error_message"`
	CommentsCount      int        `json:"comments_count"`
	AttemptGeneration  int64      `json:"attempt_generation"`
	Version            int64      `json:"-"` // optimistic lock uchun
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
}

// VideoQuality - muvaffaqiyatli transcode qilingan bitta rendition.
// Yaratilgandan keyin hech qachon yangilanmaydi.
type VideoQuality struct {
	VideoID           gocql.UUID `json:"video_id"`
	QualityName       string     `json:"quality_name"` // 1080p, 720p, ...
	Width             int        `json:"width"`
	Height            int        `json:"height"`
	Bitrate           string     `json:"bitrate"`
	FilePath          string     `json:"file_path"`
	HLSPlaylistPath   string     `json:"hls_playlist_path,omitempty"`
	FileSize          int64      `json:"file_size"`
	AttemptGeneration int64      `json:"attempt_generation"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IngestJob - queue orqali keladigan xabar. At-least-once delivery,
// shuning uchun consumer (video_id, attempt_generation) bo'yicha idempotent.
type IngestJob struct {
	VideoID           gocql.UUID `json:"video_id"`
	AttemptGeneration int64      `json:"attempt_generation"`
	OriginalFileRef   string     `json:"original_file_ref"`
	EnqueuedAt        time.Time  `json:"enqueued_at"`
}

// QualityTier - konfiguratsiyadan keladigan bitta target sifat
type QualityTier struct {
	Label    string `json:"label" validate:"required"`
	Width    int    `json:"width" validate:"required,gt=0"`
	Height   int    `json:"height" validate:"required,gt=0"`
	Bitrate  string `json:"bitrate" validate:"required"` // masalan "2500k"
	Required bool   `json:"required"`
	HLS      bool   `json:"hls"` // true bo'lsa .m3u8 playlist ham yaratiladi
}
