// services/coordinator_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/store"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

type CoordinatorConfig struct {
	Tiers                 []models.QualityTier
	RetryMax              int // StorageUnavailable uchun jami urinishlar soni
	RetryBackoffBase      time.Duration
	TranscodeTimeout      time.Duration
	ProgressWriteInterval time.Duration
	MaxConcurrent         int // barcha videolar bo'ylab global limit
}

// CoordinatorService - ingest state machine'ning yagona egasi.
// Video satrining status/progress maydonlarini faqat shu service yozadi,
// workerlar natijalarni callback orqali qaytaradi.
type CoordinatorService struct {
	store      store.VideoStore
	queue      queue.JobQueue
	prober     Prober
	transcoder Transcoder
	cfg        CoordinatorConfig

	sem chan struct{} // global transcode semaphore

	mu       sync.Mutex
	attempts map[gocql.UUID]*attempt // joriy urinishlar, video bo'yicha
}

// attempt - bitta videoning bitta generation uchun in-flight holati
type attempt struct {
	generation int64
	cancel     context.CancelFunc

	mu          sync.Mutex         // progress aggregatsiyasi
	progress    map[string]float64 // tier -> pct
	weights     map[string]float64 // tier -> bitrate*duration
	lastWritten int
	lastWriteAt time.Time

	writeMu   sync.Mutex // shu videoning metadata yozuvlari serializatsiyasi
	finalized bool
}

func NewCoordinatorService(vs store.VideoStore, q queue.JobQueue, prober Prober,
	transcoder Transcoder, cfg CoordinatorConfig) *CoordinatorService {

	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &CoordinatorService{
		store:      vs,
		queue:      q,
		prober:     prober,
		transcoder: transcoder,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		attempts:   make(map[gocql.UUID]*attempt),
	}
}

// Process - queuedan kelgan bitta jobni oxirigacha olib boradi.
// Idempotent: duplicate yoki stale xabar no-op bilan tugaydi.
func (c *CoordinatorService) Process(ctx context.Context, job models.IngestJob) error {
	log := logrus.WithFields(logrus.Fields{
		"video_id":   job.VideoID,
		"generation": job.AttemptGeneration,
	})

	video, err := c.store.GetVideo(ctx, job.VideoID)
	if errors.Is(err, models.ErrVideoNotFound) {
		log.Warn("Job uchun video topilmadi, tashlab yuborildi")
		return nil
	}
	if err != nil {
		return err
	}

	// Stale generation - resubmit bo'lib ketgan eski xabar
	if job.AttemptGeneration != video.AttemptGeneration {
		log.WithField("current_generation", video.AttemptGeneration).
			Info("Stale attempt, tashlab yuborildi")
		return nil
	}

	// Terminal holatdagi video uchun duplicate delivery - no-op
	if video.Status.Terminal() {
		log.WithField("status", video.Status).Info("Video allaqachon terminal holatda")
		return nil
	}

	att, release := c.registerAttempt(ctx, video.ID, job.AttemptGeneration)
	if att == nil {
		log.Info("Shu generation allaqachon ishlanmoqda")
		return nil
	}
	defer release()

	attemptCtx := att.ctx

	// 1) Probe - transcode boshlanishidan oldin roppa-rosa bir marta.
	// Resubmitda o'lchamlar saqlanib qolgan bo'lsa qayta probe qilinmaydi.
	if video.Status == models.StatusUploading || video.Width == 0 || video.Duration == 0 {
		video, err = c.probePhase(ctx, attemptCtx, att, video)
		if err != nil || video == nil {
			return err
		}
	}

	// 2) Thumbnail - best-effort, videoni hech qachon fail qilmaydi.
	// Attempt ctx'ga bog'lanmaydi: finalizatsiya oldin tugasa ham thumbnail
	// yakunlanadi, staleness commit nuqtasidagi generation check bilan to'siladi
	if video.ThumbnailPath == "" {
		go c.thumbnailTask(ctx, att, video)
	}

	// 3) Tier fan-out
	return c.fanOut(ctx, attemptCtx, att, video)
}

// registerAttempt - eski generation ishlayotgan bo'lsa uni bekor qiladi,
// joriy generation allaqachon ro'yxatda bo'lsa nil qaytaradi (duplicate).
func (c *CoordinatorService) registerAttempt(parent context.Context, videoID gocql.UUID, generation int64) (*attemptHandle, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.attempts[videoID]; ok {
		if existing.generation >= generation {
			return nil, nil
		}
		// Fencing: resubmit eski urinishni to'xtatadi
		existing.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	att := &attempt{
		generation: generation,
		cancel:     cancel,
		progress:   make(map[string]float64),
		weights:    make(map[string]float64),
	}
	c.attempts[videoID] = att

	handle := &attemptHandle{attempt: att, ctx: ctx}
	release := func() {
		c.mu.Lock()
		if c.attempts[videoID] == att {
			delete(c.attempts, videoID)
		}
		c.mu.Unlock()
		cancel()
	}
	return handle, release
}

type attemptHandle struct {
	*attempt
	ctx context.Context
}

// probePhase - probe natijasini yozadi va uploading -> processing o'tkazadi.
// Probe xatosi to'g'ridan-to'g'ri failed holatga olib boradi, processing'ga
// umuman kirilmaydi. Qaytgan video nil bo'lsa pipeline shu yerda tugaydi.
func (c *CoordinatorService) probePhase(ctx context.Context, attemptCtx context.Context,
	att *attemptHandle, video *models.Video) (*models.Video, error) {

	log := logrus.WithField("video_id", video.ID)

	result, probeErr := c.probeWithRetry(attemptCtx, video.OriginalFile)
	if probeErr != nil {
		if errors.Is(attemptCtx.Err(), context.Canceled) {
			return nil, nil // superseded
		}
		log.WithError(probeErr).Warn("Probe muvaffaqiyatsiz")

		att.writeMu.Lock()
		defer att.writeMu.Unlock()
		_, err := c.casUpdate(ctx, video.ID, att.generation, func(v *models.Video) error {
			if err := v.Transition(models.StatusFailed); err != nil {
				return err
			}
			// Probe xatosi error_message'da verbatim ko'rinadi
			v.ErrorMessage = probeErr.Error()
			return nil
		})
		if err != nil && !errors.Is(err, models.ErrStaleAttempt) {
			return nil, err
		}
		att.finalized = true
		return nil, nil
	}

	updated, err := c.casUpdate(ctx, video.ID, att.generation, func(v *models.Video) error {
		if v.Status == models.StatusUploading {
			if err := v.Transition(models.StatusProcessing); err != nil {
				return err
			}
		}
		v.Duration = result.Duration
		v.Width = result.Width
		v.Height = result.Height
		v.FileSize = result.FileSize
		v.ProcessingProgress = 0
		return nil
	})
	if errors.Is(err, models.ErrStaleAttempt) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// probeWithRetry - format xatosi retry qilinmaydi (deterministik),
// lekin yuklab olishdagi StorageUnavailable transport xatosi retry qilinadi
func (c *CoordinatorService) probeWithRetry(ctx context.Context, originalRef string) (*ProbeResult, error) {
	var lastErr error
	for try := 0; try < c.cfg.RetryMax; try++ {
		result, err := c.prober.Probe(ctx, originalRef)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrStorageUnavailable) {
			return nil, err
		}
		if !c.backoffWait(ctx, try) {
			break
		}
	}
	return nil, lastErr
}

func (c *CoordinatorService) thumbnailTask(ctx context.Context, att *attemptHandle, video *models.Video) {
	path, err := c.transcoder.Thumbnail(ctx, video)
	if err != nil {
		logrus.WithField("video_id", video.ID).WithError(err).Warn("Thumbnail yaratilmadi")
		return
	}

	att.writeMu.Lock()
	defer att.writeMu.Unlock()
	_, err = c.casUpdate(ctx, video.ID, att.generation, func(v *models.Video) error {
		v.ThumbnailPath = path
		return nil
	})
	if err != nil && !errors.Is(err, models.ErrStaleAttempt) {
		logrus.WithField("video_id", video.ID).WithError(err).Warn("Thumbnail path yozilmadi")
	}
}

// plannedTier - source o'lchamiga qarab qayta baholangan tier
type plannedTier struct {
	models.QualityTier
	effectiveRequired bool
}

// planTiers - source balandligidan yuqori tierlar optional bo'lib qoladi.
// Demotiondan keyin birorta ham required qolmasa, eng pasti required
// hisoblanadi, shunda ready kamida bitta renditionni kafolatlaydi.
func planTiers(tiers []models.QualityTier, sourceHeight int) []plannedTier {
	planned := make([]plannedTier, 0, len(tiers))
	for _, tier := range tiers {
		pt := plannedTier{QualityTier: tier, effectiveRequired: tier.Required}
		if tier.Height > sourceHeight {
			pt.effectiveRequired = false
		}
		planned = append(planned, pt)
	}

	hasRequired := false
	for _, pt := range planned {
		if pt.effectiveRequired {
			hasRequired = true
			break
		}
	}
	if !hasRequired && len(planned) > 0 {
		sort.Slice(planned, func(i, j int) bool { return planned[i].Height < planned[j].Height })
		planned[0].effectiveRequired = true
	}
	return planned
}

// parseBitrate - "2500k" -> 2500 (kbps)
func parseBitrate(bitrate string) float64 {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(bitrate)), "k")
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		return n
	}
	return 1000
}

// fanOut - har bir tier uchun mustaqil worker, required to'plam natijasi
// terminal holatni belgilaydi
func (c *CoordinatorService) fanOut(ctx context.Context, attemptCtx context.Context,
	att *attemptHandle, video *models.Video) error {

	log := logrus.WithFields(logrus.Fields{
		"video_id":   video.ID,
		"generation": att.generation,
	})

	planned := planTiers(c.cfg.Tiers, video.Height)

	// Oldingi urinishda tayyor bo'lgan renditionlar qayta ishlanmaydi
	existing, err := c.store.ListQualities(ctx, video.ID)
	if err != nil {
		return err
	}
	done := make(map[string]bool)
	for _, q := range existing {
		done[q.QualityName] = true
	}

	// Og'irliklar: bitrate * duration (kattaroq rendition ko'proq hissa qo'shadi)
	att.mu.Lock()
	for _, pt := range planned {
		att.weights[pt.Label] = parseBitrate(pt.Bitrate) * float64(video.Duration)
		if done[pt.Label] {
			att.progress[pt.Label] = 100
		}
	}
	att.mu.Unlock()

	type tierOutcome struct {
		tier plannedTier
		err  error
	}
	results := make(chan tierOutcome, len(planned))

	var wg sync.WaitGroup
	for _, pt := range planned {
		if done[pt.Label] {
			results <- tierOutcome{tier: pt}
			continue
		}
		wg.Add(1)
		go func(pt plannedTier) {
			defer wg.Done()

			// Global limit - transcoding CPU/IO og'ir
			select {
			case c.sem <- struct{}{}:
			case <-attemptCtx.Done():
				results <- tierOutcome{tier: pt, err: models.ErrStaleAttempt}
				return
			}
			defer func() { <-c.sem }()

			results <- tierOutcome{tier: pt, err: c.runTier(ctx, attemptCtx, att, video, pt)}
		}(pt)
	}
	wg.Wait()
	close(results)

	// Urinish superseded bo'lgan bo'lsa terminal qaror yangi avlodga qoladi
	if attemptCtx.Err() != nil {
		log.Info("Urinish bekor qilindi, finalizatsiya yo'q")
		return nil
	}

	var failedRequired []string
	for outcome := range results {
		if outcome.err == nil {
			continue
		}
		if errors.Is(outcome.err, models.ErrStaleAttempt) {
			return nil
		}
		tierLog := log.WithField("tier", outcome.tier.Label).WithError(outcome.err)
		if outcome.tier.effectiveRequired {
			tierLog.Error("Majburiy tier muvaffaqiyatsiz")
			failedRequired = append(failedRequired, outcome.tier.Label)
		} else {
			// Optional tier xatosi videoni hech qachon fail qilmaydi
			tierLog.Warn("Optional tier muvaffaqiyatsiz")
		}
	}

	if len(failedRequired) > 0 {
		sort.Strings(failedRequired)
		msg := fmt.Sprintf("transcoding failed for required tiers: %s", strings.Join(failedRequired, ", "))
		return c.finalize(ctx, att, video.ID, models.StatusFailed, msg)
	}
	return c.finalize(ctx, att, video.ID, models.StatusReady, "")
}

// runTier - bitta tier, retry siyosati bilan: StorageUnavailable backoff
// bilan qayta uriniladi, EncodingFailed (timeout ham) deterministik
func (c *CoordinatorService) runTier(ctx context.Context, attemptCtx context.Context,
	att *attemptHandle, video *models.Video, pt plannedTier) error {

	var lastErr error
	for try := 0; try < c.cfg.RetryMax; try++ {
		tierCtx := attemptCtx
		var cancel context.CancelFunc
		if c.cfg.TranscodeTimeout > 0 {
			tierCtx, cancel = context.WithTimeout(attemptCtx, c.cfg.TranscodeTimeout)
		}

		quality, err := c.transcoder.Transcode(tierCtx, video, pt.QualityTier, att.generation,
			func(pct float64) {
				c.onProgress(ctx, att, video.ID, pt.Label, pct)
			})
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return c.commitTier(ctx, attemptCtx, att, video.ID, pt.Label, quality)
		}

		// Bekor qilingan urinish natijasi hech narsaga yozilmaydi
		if attemptCtx.Err() != nil {
			return models.ErrStaleAttempt
		}

		lastErr = err
		if !errors.Is(err, models.ErrStorageUnavailable) {
			return err // EncodingFailed / UnsupportedFormat - retry yo'q
		}
		if try < c.cfg.RetryMax-1 {
			if !c.backoffWait(attemptCtx, try) {
				return models.ErrStaleAttempt
			}
		}
	}
	return fmt.Errorf("retry budjeti tugadi: %w", lastErr)
}

// commitTier - natijani stale-check bilan yozadi
func (c *CoordinatorService) commitTier(ctx context.Context, attemptCtx context.Context,
	att *attemptHandle, videoID gocql.UUID, label string, quality *models.VideoQuality) error {

	if attemptCtx.Err() != nil {
		return models.ErrStaleAttempt
	}

	applied, err := c.store.InsertQuality(ctx, quality)
	if err != nil {
		return err
	}
	if !applied {
		// Retry qilingan workerlar poygasi - satr allaqachon bor, xato emas
		logrus.WithFields(logrus.Fields{
			"video_id": videoID,
			"tier":     label,
		}).Info("Rendition allaqachon mavjud, duplicate yozilmadi")
	}

	c.onProgress(ctx, att, videoID, label, 100)
	return nil
}

// onProgress - og'irlashtirilgan umumiy foizni qayta hisoblaydi.
// Yozuvlar coalesce qilinadi: har video uchun intervalda ko'pi bilan
// bitta yozuv, tier tugaganda (pct=100) esa majburiy yozuv.
func (c *CoordinatorService) onProgress(ctx context.Context, att *attemptHandle,
	videoID gocql.UUID, label string, pct float64) {

	att.mu.Lock()
	if pct < att.progress[label] {
		att.mu.Unlock()
		return // progress hech qachon orqaga ketmaydi
	}
	att.progress[label] = pct
	overall := att.overallLocked()

	force := pct >= 100
	now := time.Now()
	if overall <= att.lastWritten {
		att.mu.Unlock()
		return
	}
	if !force && c.cfg.ProgressWriteInterval > 0 && now.Sub(att.lastWriteAt) < c.cfg.ProgressWriteInterval {
		att.mu.Unlock()
		return
	}
	att.lastWritten = overall
	att.lastWriteAt = now
	att.mu.Unlock()

	att.writeMu.Lock()
	defer att.writeMu.Unlock()
	if att.finalized {
		return
	}
	_, err := c.casUpdate(ctx, videoID, att.generation, func(v *models.Video) error {
		if v.Status != models.StatusProcessing {
			return models.ErrStaleAttempt
		}
		if overall > v.ProcessingProgress {
			v.ProcessingProgress = overall
		}
		return nil
	})
	if err != nil && !errors.Is(err, models.ErrStaleAttempt) {
		logrus.WithField("video_id", videoID).WithError(err).Warn("Progress yozilmadi")
	}
}

// overallLocked - weighted average, att.mu ushlab chaqiriladi
func (a *attempt) overallLocked() int {
	var sum, totalWeight float64
	for label, weight := range a.weights {
		sum += a.progress[label] * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	overall := int(sum / totalWeight)
	if overall > 100 {
		overall = 100
	}
	return overall
}

// finalize - terminal o'tish, roppa-rosa bir marta. Duplicate signal no-op.
func (c *CoordinatorService) finalize(ctx context.Context, att *attemptHandle,
	videoID gocql.UUID, target models.Status, errMsg string) error {

	att.writeMu.Lock()
	defer att.writeMu.Unlock()

	if att.finalized {
		return nil
	}

	_, err := c.casUpdate(ctx, videoID, att.generation, func(v *models.Video) error {
		if v.Status == target {
			return models.ErrStaleAttempt // allaqachon finalize qilingan
		}
		if err := v.Transition(target); err != nil {
			return err
		}
		if target == models.StatusReady {
			v.ProcessingProgress = 100
			v.ErrorMessage = ""
			// published_at faqat bir marta, private bo'lmaganda
			if v.Visibility.Publishable() && v.PublishedAt == nil {
				now := time.Now()
				v.PublishedAt = &now
			}
		} else {
			v.ErrorMessage = errMsg
		}
		return nil
	})
	if errors.Is(err, models.ErrStaleAttempt) {
		att.finalized = true
		return nil
	}
	if err != nil {
		return err
	}

	att.finalized = true
	logrus.WithFields(logrus.Fields{
		"video_id": videoID,
		"status":   target,
	}).Info("Video finalize qilindi")
	return nil
}

// Resubmit - failed videoni yangi generation bilan qayta navbatga qo'yadi.
// Userga ochiq yagona recovery yo'li.
func (c *CoordinatorService) Resubmit(ctx context.Context, videoID gocql.UUID) (*models.Video, error) {
	// Eski urinishning in-flight tasklari bekor qilinadi
	c.mu.Lock()
	if att, ok := c.attempts[videoID]; ok {
		att.cancel()
	}
	c.mu.Unlock()

	var updated *models.Video
	var prevMessage string
	for {
		video, err := c.store.GetVideo(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if video.Status != models.StatusFailed {
			return nil, fmt.Errorf("%w: faqat failed video resubmit qilinadi (hozir: %s)",
				models.ErrInvalidTransition, video.Status)
		}

		if err := video.Transition(models.StatusProcessing); err != nil {
			return nil, err
		}
		prevMessage = video.ErrorMessage
		video.AttemptGeneration++
		video.ProcessingProgress = 0
		video.ErrorMessage = ""

		err = c.store.UpdateVideo(ctx, video, video.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		updated = video
		break
	}

	job := models.IngestJob{
		VideoID:           updated.ID,
		AttemptGeneration: updated.AttemptGeneration,
		OriginalFileRef:   updated.OriginalFile,
		EnqueuedAt:        time.Now(),
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		// Queuega tushmagan video processing'da osilib qolmasin,
		// failed'ga qaytariladi va resubmit yo'li ochiq qoladi
		c.rollbackResubmit(ctx, updated, prevMessage)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"video_id":   updated.ID,
		"generation": updated.AttemptGeneration,
	}).Info("Video resubmit qilindi")
	return updated, nil
}

func (c *CoordinatorService) rollbackResubmit(ctx context.Context, video *models.Video, prevMessage string) {
	_, err := c.casUpdate(ctx, video.ID, video.AttemptGeneration, func(v *models.Video) error {
		if err := v.Transition(models.StatusFailed); err != nil {
			return err
		}
		v.ErrorMessage = prevMessage
		return nil
	})
	if err != nil {
		logrus.WithField("video_id", video.ID).WithError(err).Error("Resubmit rollback yozilmadi")
	}
}

// casUpdate - fresh read + mutate + compare-and-swap, to'qnashuvda
// yangi read bilan qaytariladi. Generation mos kelmasa ErrStaleAttempt.
func (c *CoordinatorService) casUpdate(ctx context.Context, videoID gocql.UUID,
	generation int64, mutate func(*models.Video) error) (*models.Video, error) {

	for {
		video, err := c.store.GetVideo(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if video.AttemptGeneration != generation {
			return nil, fmt.Errorf("%w: video %s, generation %d != %d",
				models.ErrStaleAttempt, videoID, generation, video.AttemptGeneration)
		}
		if err := mutate(video); err != nil {
			return nil, err
		}
		err = c.store.UpdateVideo(ctx, video, video.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			continue // fresh read bilan qayta
		}
		if err != nil {
			return nil, err
		}
		return video, nil
	}
}

// backoffWait - eksponensial backoff, ctx bekor bo'lsa false
func (c *CoordinatorService) backoffWait(ctx context.Context, try int) bool {
	backoff := c.cfg.RetryBackoffBase << try
	if backoff <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
