// events/comment_counter.go
package events

import (
	"context"
	"errors"
	"time"

	"github.com/streamuz/ingest-service/models"
	"github.com/streamuz/ingest-service/store"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

// CommentCounter - comments_count'ni batch rejimida yangilaydi.
// Eventual-consistent: eventlar ticker bo'yicha to'planib yoziladi.
type CommentCounter struct {
	source CommentEventSource
	store  store.VideoStore
}

func NewCommentCounter(source CommentEventSource, vs store.VideoStore) *CommentCounter {
	return &CommentCounter{source: source, store: vs}
}

// Run - interval bilan navbatni bo'shatib, deltalarni yig'ib yozadi
func (c *CommentCounter) Run(ctx context.Context, interval time.Duration) {
	logrus.Println("Comment Counter Worker ishga tushdi")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Drain - navbatdagi barcha eventlarni yig'ib, video bo'yicha bitta
// delta sifatida yozadi
func (c *CommentCounter) Drain(ctx context.Context) {
	deltas := make(map[gocql.UUID]int)

	for {
		event, ok, err := c.source.Pop(ctx)
		if err != nil {
			logrus.Printf("Comment event olish xatosi: %v", err)
			break
		}
		if !ok {
			break // navbat bo'sh
		}
		deltas[event.VideoID] += event.Delta
	}

	for videoID, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := c.apply(ctx, videoID, delta); err != nil {
			logrus.Printf("comments_count yangilash xatosi (%s): %v", videoID, err)
		}
	}
}

// apply - CAS bilan counter yangilash, to'qnashuvda fresh read
func (c *CommentCounter) apply(ctx context.Context, videoID gocql.UUID, delta int) error {
	for {
		video, err := c.store.GetVideo(ctx, videoID)
		if err != nil {
			return err
		}
		video.CommentsCount += delta
		if video.CommentsCount < 0 {
			video.CommentsCount = 0
		}
		err = c.store.UpdateVideo(ctx, video, video.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		return err
	}
}
