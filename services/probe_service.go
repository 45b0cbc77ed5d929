// services/probe_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/storage"
)

// ProbeResult - original fayl haqida ffprobe chiqargan ma'lumot
type ProbeResult struct {
	Duration int // soniyada
	Width    int
	Height   int
	FileSize int64
}

// Prober - coordinator uchun probe interface
type Prober interface {
	Probe(ctx context.Context, originalRef string) (*ProbeResult, error)
}

// ProbeService - ffprobe bilan faylni tekshiradi. Read-only, side effect yo'q.
// Har video uchun birinchi transcode'dan oldin roppa-rosa bir marta chaqiriladi.
type ProbeService struct {
	storage     storage.Gateway
	rawBucket   string
	ffprobePath string
}

func NewProbeService(gw storage.Gateway, rawBucket, ffprobePath string) *ProbeService {
	return &ProbeService{
		storage:     gw,
		rawBucket:   rawBucket,
		ffprobePath: ffprobePath,
	}
}

// ffprobe -of json chiqishi
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// fetchOriginal - originalni unikal temp faylga yuklab oladi. Bir xil
// nomli fayllar (turli videolar) bir-birining ustiga yozmasligi kerak.
func (s *ProbeService) fetchOriginal(ctx context.Context, originalRef string) (string, int64, error) {
	object, err := s.storage.Get(ctx, s.rawBucket, originalRef)
	if err != nil {
		return "", 0, err // ErrStorageUnavailable bilan o'ralgan
	}
	defer object.Close()

	inputFile, err := os.CreateTemp("", "probe-*-"+filepath.Base(originalRef))
	if err != nil {
		return "", 0, fmt.Errorf("%w: temp fayl yaratilmadi: %v", models.ErrStorageUnavailable, err)
	}
	inputPath := inputFile.Name()

	size, err := io.Copy(inputFile, object)
	inputFile.Close()
	if err != nil {
		os.Remove(inputPath)
		return "", 0, fmt.Errorf("%w: original o'qilmadi: %v", models.ErrStorageUnavailable, err)
	}
	return inputPath, size, nil
}

func (s *ProbeService) Probe(ctx context.Context, originalRef string) (*ProbeResult, error) {
	inputPath, size, err := s.fetchOriginal(ctx, originalRef)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputPath)

	// ffprobe bilan container va streamlarni tekshirish
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		// ffprobe o'qiy olmadi - buzilgan yoki qo'llanmaydigan container
		return nil, fmt.Errorf("%w: ffprobe faylni o'qiy olmadi: %v", models.ErrUnsupportedFormat, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: ffprobe chiqishi parse bo'lmadi: %v", models.ErrUnsupportedFormat, err)
	}

	result := &ProbeResult{FileSize: size}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		result.Duration = int(d)
	}

	// Birinchi video streamning o'lchamlari
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" && stream.Width > 0 {
			result.Width = stream.Width
			result.Height = stream.Height
			break
		}
	}

	if result.Width == 0 || result.Height == 0 || result.Duration == 0 {
		return nil, fmt.Errorf("%w: video stream topilmadi", models.ErrUnsupportedFormat)
	}

	return result, nil
}
