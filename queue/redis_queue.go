// queue/redis_queue.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streamuz/ingest-service/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	ingestQueueKey      = "ingest_queue"
	ingestProcessingKey = "ingest_queue:processing"
)

// RedisQueue - Redis list ustida JobQueue. Dequeue xabarni o'chirmasdan
// processing listga ko'chiradi (BLMove), Ack uni u yerdan olib tashlaydi.
// Consumer crash qilsa xabar processing listda qoladi va keyingi ishga
// tushishda asosiy navbatga qaytariladi.
type RedisQueue struct {
	client *redis.Client

	mu      sync.Mutex
	pending map[string]string // jobKey -> queuedan kelgan raw payload
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	q := &RedisQueue{
		client:  client,
		pending: make(map[string]string),
	}
	q.reclaim(context.Background())
	return q
}

// reclaim - oldingi processda ack qilinmay qolgan joblarni navbatga qaytaradi
func (q *RedisQueue) reclaim(ctx context.Context) {
	for {
		_, err := q.client.LMove(ctx, ingestProcessingKey, ingestQueueKey, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			logrus.Printf("Processing listni qaytarish xatosi: %v", err)
			return
		}
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job models.IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, ingestQueueKey, data).Err(); err != nil {
		return fmt.Errorf("queuega qo'shish xatosi: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (models.IngestJob, error) {
	var job models.IngestJob

	// 0 timeout bilan - xabar kelguncha bloklanadi
	raw, err := q.client.BLMove(ctx, ingestQueueKey, ingestProcessingKey, "LEFT", "RIGHT", 0).Result()
	if err != nil {
		return job, fmt.Errorf("queuedan olish xatosi: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, fmt.Errorf("job parse xatosi: %w", err)
	}

	q.mu.Lock()
	q.pending[jobKey(job)] = raw
	q.mu.Unlock()
	return job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job models.IngestJob) error {
	q.mu.Lock()
	raw, ok := q.pending[jobKey(job)]
	delete(q.pending, jobKey(job))
	q.mu.Unlock()
	if !ok {
		return nil
	}
	return q.client.LRem(ctx, ingestProcessingKey, 1, raw).Err()
}

func (q *RedisQueue) Close() error {
	return nil // client ingestd tomonidan yopiladi
}
