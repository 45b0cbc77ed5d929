// events/comment_events.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
)

const commentEventsKey = "comment_events"

// CommentEvent - Comment collaboratoridan keladigan xabar.
// comments_count denormalizatsiyasi shu eventlar orqali yuritiladi,
// core hech qachon comment jadvalini o'zi qayta hisoblamaydi.
type CommentEvent struct {
	VideoID gocql.UUID `json:"video_id"`
	Delta   int        `json:"delta"` // +1 yaratilganda, -1 o'chirilganda
}

// CommentEventSource - counter worker uchun event manbai
type CommentEventSource interface {
	// Pop keyingi eventni qaytaradi, navbat bo'sh bo'lsa ok=false
	Pop(ctx context.Context) (CommentEvent, bool, error)
}

// CommentEventSink - Comment collaboratori shu orqali publish qiladi
type CommentEventSink interface {
	Publish(ctx context.Context, event CommentEvent) error
}

// RedisCommentEvents - Redis list ustida source + sink
type RedisCommentEvents struct {
	client *redis.Client
}

func NewRedisCommentEvents(client *redis.Client) *RedisCommentEvents {
	return &RedisCommentEvents{client: client}
}

func (r *RedisCommentEvents) Publish(ctx context.Context, event CommentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, commentEventsKey, data).Err()
}

func (r *RedisCommentEvents) Pop(ctx context.Context) (CommentEvent, bool, error) {
	var event CommentEvent

	result, err := r.client.LPop(ctx, commentEventsKey).Result()
	if err == redis.Nil {
		return event, false, nil // navbat bo'sh
	}
	if err != nil {
		return event, false, err
	}

	if err := json.Unmarshal([]byte(result), &event); err != nil {
		return event, false, fmt.Errorf("comment event parse xatosi: %w", err)
	}
	return event, true, nil
}

// MemoryCommentEvents - testlar uchun slice asosidagi source/sink
type MemoryCommentEvents struct {
	events []CommentEvent
}

func NewMemoryCommentEvents() *MemoryCommentEvents {
	return &MemoryCommentEvents{}
}

func (m *MemoryCommentEvents) Publish(ctx context.Context, event CommentEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryCommentEvents) Pop(ctx context.Context) (CommentEvent, bool, error) {
	if len(m.events) == 0 {
		return CommentEvent{}, false, nil
	}
	event := m.events[0]
	m.events = m.events[1:]
	return event, true, nil
}
