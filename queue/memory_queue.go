// queue/memory_queue.go
package queue

import (
	"context"
	"errors"

	"github.com/streamuz/ingest-service/models"
)

// MemoryQueue - testlar uchun channel asosidagi JobQueue
type MemoryQueue struct {
	jobs chan models.IngestJob
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan models.IngestJob, buffer)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job models.IngestJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue to'lgan")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (models.IngestJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return models.IngestJob{}, ctx.Err()
	}
}

// Ack - channel Dequeue'da o'chiradi, alohida ack bosqichi yo'q
func (q *MemoryQueue) Ack(ctx context.Context, job models.IngestJob) error {
	return nil
}

func (q *MemoryQueue) Close() error {
	return nil
}

// Len - testlarda kutayotgan joblar soni
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}
