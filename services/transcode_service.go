// services/transcode_service.go
package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/storage"

	"github.com/sirupsen/logrus"
)

// Transcoder - coordinator uchun transcode interface. Har bir chaqiruv
// roppa-rosa bitta (video, tier) juftligi uchun ishlaydi va progress
// callbacklar orqali foizni xabar qiladi.
type Transcoder interface {
	Transcode(ctx context.Context, video *models.Video, tier models.QualityTier,
		generation int64, progress func(pct float64)) (*models.VideoQuality, error)
	Thumbnail(ctx context.Context, video *models.Video) (string, error)
}

// FFmpegTranscoder - ffmpeg binary orqali transcode
type FFmpegTranscoder struct {
	storage         storage.Gateway
	rawBucket       string
	processedBucket string
	thumbBucket     string
	ffmpegPath      string
}

func NewFFmpegTranscoder(gw storage.Gateway, rawBucket, processedBucket, thumbBucket, ffmpegPath string) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		storage:         gw,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		thumbBucket:     thumbBucket,
		ffmpegPath:      ffmpegPath,
	}
}

// Transcode - originalni bitta tierga o'tkazadi va natijani storagega yozadi.
// Xato sinflari: yuklash/saqlash -> StorageUnavailable (retryable),
// ffmpeg xatosi yoki timeout -> EncodingFailed (shu tier uchun terminal).
func (t *FFmpegTranscoder) Transcode(ctx context.Context, video *models.Video, tier models.QualityTier,
	generation int64, progress func(pct float64)) (*models.VideoQuality, error) {

	log := logrus.WithFields(logrus.Fields{
		"video_id":   video.ID,
		"tier":       tier.Label,
		"generation": generation,
	})
	log.Info("Tier transcode boshlandi")

	inputPath, err := t.downloadOriginal(ctx, video, fmt.Sprintf("%d-%s", generation, tier.Label))
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputPath)

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d-%s.mp4", video.ID, generation, tier.Label))
	defer os.Remove(outputPath)

	if err := t.runFFmpeg(ctx, inputPath, outputPath, tier, video.Duration, progress); err != nil {
		return nil, err
	}

	// Natijani storagega yuklash
	objectPath := fmt.Sprintf("processed/%s/%s.mp4", video.ID, tier.Label)
	fileSize, err := t.uploadFile(ctx, outputPath, objectPath, "video/mp4")
	if err != nil {
		return nil, err
	}

	quality := &models.VideoQuality{
		VideoID:           video.ID,
		QualityName:       tier.Label,
		Width:             tier.Width,
		Height:            tier.Height,
		Bitrate:           tier.Bitrate,
		FilePath:          objectPath,
		FileSize:          fileSize,
		AttemptGeneration: generation,
		CreatedAt:         time.Now(),
	}

	// Tier so'ragan bo'lsa HLS playlist ham chiqaramiz
	if tier.HLS {
		playlistPath, err := t.packageHLS(ctx, outputPath, video, tier)
		if err != nil {
			return nil, err
		}
		quality.HLSPlaylistPath = playlistPath
	}

	log.Info("Tier transcode tugadi")
	return quality, nil
}

// downloadOriginal - har bir worker o'z nusxasini oladi. Tier workerlar
// parallel ishlaydi, umumiy input fayl birinchi tugagan workerning
// cleanup'ida o'chib ketadi, shuning uchun yo'l har doim unikal.
func (t *FFmpegTranscoder) downloadOriginal(ctx context.Context, video *models.Video, tag string) (string, error) {
	object, err := t.storage.Get(ctx, t.rawBucket, video.OriginalFile)
	if err != nil {
		return "", err
	}
	defer object.Close()

	inputFile, err := os.CreateTemp("", fmt.Sprintf("%s-%s-input-*.mp4", video.ID, tag))
	if err != nil {
		return "", fmt.Errorf("%w: temp fayl yaratilmadi: %v", models.ErrStorageUnavailable, err)
	}
	inputPath := inputFile.Name()

	_, err = io.Copy(inputFile, object)
	inputFile.Close()
	if err != nil {
		os.Remove(inputPath)
		return "", fmt.Errorf("%w: original o'qilmadi: %v", models.ErrStorageUnavailable, err)
	}
	return inputPath, nil
}

// runFFmpeg - scale + x264 transcode, -progress pipe orqali foiz o'qiladi
func (t *FFmpegTranscoder) runFFmpeg(ctx context.Context, inputPath, outputPath string,
	tier models.QualityTier, durationSec int, progress func(pct float64)) error {

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d", tier.Width, tier.Height),
		"-c:v", "libx264",
		"-b:v", tier.Bitrate,
		"-maxrate", tier.Bitrate,
		"-bufsize", tier.Bitrate,
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrEncodingFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg ishga tushmadi: %v", models.ErrEncodingFailed, err)
	}

	// key=value qatorlar: out_time_us=... / progress=end
	totalUs := float64(durationSec) * 1e6
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "out_time_us=") {
			continue
		}
		outUs, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_us="), 64)
		if err != nil || totalUs <= 0 {
			continue
		}
		pct := outUs / totalUs * 100
		if pct > 99 {
			pct = 99 // 100 faqat upload tugagach
		}
		if pct > 0 && progress != nil {
			progress(pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		// Wall-clock budjet tugashi ham EncodingFailed hisoblanadi
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: vaqt tugadi (%s)", models.ErrEncodingFailed, tier.Label)
		}
		return fmt.Errorf("%w: ffmpeg (%s): %s", models.ErrEncodingFailed, tier.Label, lastLines(stderr.String(), 3))
	}

	return nil
}

// packageHLS - tayyor MP4dan copy-codec bilan HLS segmentlar chiqaradi
func (t *FFmpegTranscoder) packageHLS(ctx context.Context, mp4Path string,
	video *models.Video, tier models.QualityTier) (string, error) {

	hlsDir, err := os.MkdirTemp("", fmt.Sprintf("hls-%s-%s-", video.ID, tier.Label))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrEncodingFailed, err)
	}
	defer os.RemoveAll(hlsDir)

	playlistFile := filepath.Join(hlsDir, "index.m3u8")
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-i", mp4Path,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", "6",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(hlsDir, "seg_%03d.ts"),
		playlistFile,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: hls (%s): %s", models.ErrEncodingFailed, tier.Label, lastLines(string(output), 3))
	}

	// Playlist va segmentlarni storagega yuklash
	prefix := fmt.Sprintf("processed/%s/hls/%s", video.ID, tier.Label)
	entries, err := os.ReadDir(hlsDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrEncodingFailed, err)
	}

	for _, entry := range entries {
		contentType := "video/mp2t"
		if strings.HasSuffix(entry.Name(), ".m3u8") {
			contentType = "application/vnd.apple.mpegurl"
		}
		objectPath := prefix + "/" + entry.Name()
		if _, err := t.uploadFile(ctx, filepath.Join(hlsDir, entry.Name()), objectPath, contentType); err != nil {
			return "", err
		}
	}

	return prefix + "/index.m3u8", nil
}

// Thumbnail - 5-soniyadan bitta kadr. Best-effort, xatosi videoni
// fail qilmaydi
func (t *FFmpegTranscoder) Thumbnail(ctx context.Context, video *models.Video) (string, error) {
	inputPath, err := t.downloadOriginal(ctx, video, "thumb")
	if err != nil {
		return "", err
	}
	defer os.Remove(inputPath)

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-thumb.jpg", video.ID))
	defer os.Remove(outputPath)

	// Qisqa videolarda 5-soniya bo'lmasligi mumkin
	seek := "00:00:05"
	if video.Duration < 5 {
		seek = "00:00:00"
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-ss", seek,
		"-vframes", "1",
		"-vf", "scale=1280:720",
		"-q:v", "2",
		outputPath,
	)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: thumbnail: %v", models.ErrEncodingFailed, err)
	}

	objectPath := fmt.Sprintf("%s/thumbnail.jpg", video.ID)
	file, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	if err := t.storage.Put(ctx, t.thumbBucket, objectPath, file, info.Size(), "image/jpeg"); err != nil {
		return "", err
	}
	return objectPath, nil
}

func (t *FFmpegTranscoder) uploadFile(ctx context.Context, localPath, objectPath, contentType string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	if err := t.storage.Put(ctx, t.processedBucket, objectPath, file, info.Size(), contentType); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// lastLines - ffmpeg stderridan oxirgi bir necha qator
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
