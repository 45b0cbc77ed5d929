// config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streamuz/ingest-service/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	CassandraHosts []string
	MinIO          MinIOConfig
	RedisAddr      string
	KafkaBrokers   []string
	QueueBackend   string // "redis" yoki "kafka"

	// Transcode sozlamalari
	Tiers                   []models.QualityTier
	RetryMax                int           // StorageUnavailable uchun retry budjeti
	RetryBackoffBase        time.Duration // har attemptda ikki baravar oshadi
	TranscodeTimeout        time.Duration // bitta tier uchun wall-clock budjet
	ProgressWriteInterval   time.Duration // progress yozuvlari coalesce oynasi
	MaxConcurrentTranscodes int
	WorkerCount             int

	FFmpegPath  string
	FFprobePath string
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	RawBucket       string
	ProcessedBucket string
	ThumbnailBucket string
}

// Default tier ladder - QUALITY_TIERS env berilmasa ishlatiladi
const defaultTiersJSON = `[
	{"label": "480p",  "width": 854,  "height": 480,  "bitrate": "1000k", "required": true},
	{"label": "720p",  "width": 1280, "height": 720,  "bitrate": "2500k", "required": true,  "hls": true},
	{"label": "1080p", "width": 1920, "height": 1080, "bitrate": "5000k", "required": false, "hls": true}
]`

func Load() (*Config, error) {
	// .env bo'lsa yuklaymiz, bo'lmasa ENV dan davom etamiz
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "3000"),
		CassandraHosts: []string{
			getEnv("CASSANDRA_HOST", "127.0.0.1:9042"),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          false,
			RawBucket:       getEnv("MINIO_RAW_BUCKET", "videos-raw"),
			ProcessedBucket: getEnv("MINIO_PROCESSED_BUCKET", "videos-processed"),
			ThumbnailBucket: getEnv("MINIO_THUMBNAIL_BUCKET", "thumbnails"),
		},
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		QueueBackend: getEnv("QUEUE_BACKEND", "redis"),

		RetryMax:                getEnvInt("RETRY_MAX", 3),
		RetryBackoffBase:        getEnvDuration("RETRY_BACKOFF_BASE", 2*time.Second),
		TranscodeTimeout:        getEnvDuration("TRANSCODE_TIMEOUT", 30*time.Minute),
		ProgressWriteInterval:   getEnvDuration("PROGRESS_WRITE_INTERVAL", 2*time.Second),
		MaxConcurrentTranscodes: getEnvInt("MAX_CONCURRENT_TRANSCODES", 4),
		WorkerCount:             getEnvInt("WORKER_COUNT", 3),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
	}

	tiers, err := parseTiers(getEnv("QUALITY_TIERS", defaultTiersJSON))
	if err != nil {
		return nil, err
	}
	cfg.Tiers = tiers

	if cfg.QueueBackend != "redis" && cfg.QueueBackend != "kafka" {
		return nil, fmt.Errorf("noto'g'ri QUEUE_BACKEND: %s", cfg.QueueBackend)
	}

	return cfg, nil
}

// parseTiers - JSON ladder parse + validate
func parseTiers(raw string) ([]models.QualityTier, error) {
	var tiers []models.QualityTier
	if err := json.Unmarshal([]byte(raw), &tiers); err != nil {
		return nil, fmt.Errorf("QUALITY_TIERS parse xatosi: %w", err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("QUALITY_TIERS bo'sh bo'lishi mumkin emas")
	}

	validate := validator.New()
	seen := make(map[string]bool)
	for i, tier := range tiers {
		if err := validate.Struct(tier); err != nil {
			return nil, fmt.Errorf("tier %d noto'g'ri: %w", i, err)
		}
		if seen[tier.Label] {
			return nil, fmt.Errorf("tier label takrorlangan: %s", tier.Label)
		}
		seen[tier.Label] = true
	}
	return tiers, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
