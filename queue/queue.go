// queue/queue.go
package queue

import (
	"context"
	"strconv"

	"github.com/streamuz/ingest-service/models"
)

// JobQueue - upload tugashi bilan transcode boshlashni ajratib turadigan
// navbat. At-least-once delivery: xabar Dequeue'da o'chmaydi, faqat Ack'dan
// keyin yakunlanadi, shunda job o'rtasida o'lgan consumer xabarni
// yo'qotmaydi. Duplicate va stale xabarlarni coordinator
// (video_id, attempt_generation) bo'yicha o'zi filtrlaydi.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.IngestJob) error
	// Dequeue bloklanadi, ctx bekor qilinsa xato qaytaradi
	Dequeue(ctx context.Context) (models.IngestJob, error)
	// Ack job muvaffaqiyatli ishlangandan keyingina chaqiriladi
	Ack(ctx context.Context, job models.IngestJob) error
	Close() error
}

func jobKey(job models.IngestJob) string {
	return job.VideoID.String() + ":" + strconv.FormatInt(job.AttemptGeneration, 10)
}
