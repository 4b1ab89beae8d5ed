package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sagelearn/engage-backend/internal/platform/logger"
)

// EngagementUpdate is the live snapshot published whenever a sample lands, so
// dashboards can follow a learner without polling the store.
type EngagementUpdate struct {
	LearnerID uuid.UUID `json:"learner_id"`
	SessionID uuid.UUID `json:"session_id"`
	Score     float64   `json:"score"`
	Emotion   string    `json:"emotion"`
	Timestamp time.Time `json:"timestamp"`
}

type EngagementBus interface {
	Publish(ctx context.Context, update EngagementUpdate) error
	Subscribe(ctx context.Context, onUpdate func(EngagementUpdate)) error
	Close() error
}

type engagementBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewEngagementBus(log *logger.Logger) (EngagementBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "engagement"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &engagementBus{
		log:     log.With("service", "RedisEngagementBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *engagementBus) Publish(ctx context.Context, update EngagementUpdate) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("engagement bus not initialized")
	}
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *engagementBus) Subscribe(ctx context.Context, onUpdate func(EngagementUpdate)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("engagement bus not initialized")
	}
	if onUpdate == nil {
		return fmt.Errorf("onUpdate callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var update EngagementUpdate
				if err := json.Unmarshal([]byte(m.Payload), &update); err != nil {
					b.log.Warn("Dropping malformed engagement update", "error", err)
					continue
				}
				onUpdate(update)
			}
		}
	}()
	return nil
}

func (b *engagementBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
