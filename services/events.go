package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventDailyBonus          EventType = "daily_bonus"
	EventStreakMilestone     EventType = "streak_milestone"
)

// ProgressionEvent is emitted after a progression unit commits.
type ProgressionEvent struct {
	Type       EventType      `json:"type"`
	UserID     string         `json:"user_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventPublisher delivers progression events. Delivery failures never undo progression.
type EventPublisher interface {
	Publish(ctx context.Context, evt ProgressionEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ProgressionEvent) error { return nil }

// RedisPublisher fans events out over a redis pub/sub channel as JSON.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = "gamification:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt ProgressionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Type, err)
	}
	return nil
}
