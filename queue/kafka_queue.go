// queue/kafka_queue.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streamuz/ingest-service/models"

	"github.com/segmentio/kafka-go"
)

const (
	ingestTopic = "ingest.jobs"
	ingestGroup = "ingest-workers"
)

// KafkaQueue - Kafka ustida JobQueue. Key sifatida video_id ishlatiladi,
// shunda bitta videoning xabarlari bitta partitionga tushadi. Offset
// FetchMessage'da emas, Ack'dagi CommitMessages'da commit qilinadi:
// job o'rtasida o'lgan consumer xabarni rebalance'dan keyin qayta oladi.
type KafkaQueue struct {
	reader *kafka.Reader
	writer *kafka.Writer

	mu      sync.Mutex
	pending map[string]kafka.Message // jobKey -> commit qilinmagan xabar
}

func NewKafkaQueue(brokers []string) *KafkaQueue {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       ingestTopic,
		GroupID:     ingestGroup,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})

	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    ingestTopic,
		Balancer: &kafka.Hash{},
	}

	return &KafkaQueue{
		reader:  reader,
		writer:  writer,
		pending: make(map[string]kafka.Message),
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job models.IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.VideoID.String()),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka yozish xatosi: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Dequeue(ctx context.Context) (models.IngestJob, error) {
	var job models.IngestJob

	// FetchMessage offsetni commit qilmaydi, ReadMessage'dan farqli
	message, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return job, fmt.Errorf("kafka o'qish xatosi: %w", err)
	}

	if err := json.Unmarshal(message.Value, &job); err != nil {
		return job, fmt.Errorf("job parse xatosi: %w", err)
	}

	q.mu.Lock()
	q.pending[jobKey(job)] = message
	q.mu.Unlock()
	return job, nil
}

func (q *KafkaQueue) Ack(ctx context.Context, job models.IngestJob) error {
	q.mu.Lock()
	message, ok := q.pending[jobKey(job)]
	delete(q.pending, jobKey(job))
	q.mu.Unlock()
	if !ok {
		return nil
	}
	if err := q.reader.CommitMessages(ctx, message); err != nil {
		return fmt.Errorf("kafka commit xatosi: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	if err := q.writer.Close(); err != nil {
		return err
	}
	return q.reader.Close()
}
