// workers/ingest_worker.go
package workers

import (
	"context"
	"sync"

	"github.com/streamuz/ingest-service/queue"
	"github.com/streamuz/ingest-service/services"

	"github.com/sirupsen/logrus"
)

// IngestWorkerPool - queuedan job olib coordinatorga beradigan workerlar.
// Tier darajasidagi parallellik coordinator ichida, bu pool faqat nechta
// video bir vaqtda ishlanishini belgilaydi.
type IngestWorkerPool struct {
	workerCount int
	queue       queue.JobQueue
	coordinator *services.CoordinatorService
	wg          sync.WaitGroup
}

func NewIngestWorkerPool(workerCount int, q queue.JobQueue, coordinator *services.CoordinatorService) *IngestWorkerPool {
	return &IngestWorkerPool{
		workerCount: workerCount,
		queue:       q,
		coordinator: coordinator,
	}
}

func (p *IngestWorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop - ctx bekor qilingandan keyin workerlarning tugashini kutadi
func (p *IngestWorkerPool) Stop() {
	p.wg.Wait()
}

func (p *IngestWorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := logrus.WithField("worker", id)
	log.Info("Ingest worker ishga tushdi")

	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Ingest worker to'xtadi")
				return
			}
			log.WithError(err).Warn("Queue xatosi")
			continue
		}

		log.WithFields(logrus.Fields{
			"video_id":   job.VideoID,
			"generation": job.AttemptGeneration,
		}).Info("Job qabul qilindi")

		if err := p.coordinator.Process(ctx, job); err != nil {
			// Tier xatolari coordinator ichida hal bo'ladi, bu yerga
			// faqat infra xatolari (store/queue) yetib keladi.
			// Ack qilinmaydi - xabar redelivery uchun navbatda qoladi
			log.WithField("video_id", job.VideoID).WithError(err).Error("Job ishlanmadi")
			continue
		}

		if err := p.queue.Ack(ctx, job); err != nil {
			log.WithField("video_id", job.VideoID).WithError(err).Warn("Job ack xatosi")
		}
	}
}
