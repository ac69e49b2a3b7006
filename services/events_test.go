package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

// fakeRedis only implements Publish; any other call panics on the nil embedded client.
type fakeRedis struct {
	redis.UniversalClient
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher(t *testing.T) {
	fake := &fakeRedis{}
	pub := NewRedisPublisher(fake, "")

	evt := ProgressionEvent{Type: EventLevelUp, UserID: "u1", Payload: map[string]any{"new_level": 2}, OccurredAt: testNow}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fake.channel != "gamification:events" {
		t.Fatalf("channel = %q", fake.channel)
	}
	var decoded ProgressionEvent
	if err := json.Unmarshal(fake.payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Type != EventLevelUp || decoded.UserID != "u1" || decoded.Payload["new_level"] != float64(2) {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestRedisPublisherError(t *testing.T) {
	pub := NewRedisPublisher(&fakeRedis{err: errors.New("connection refused")}, "events")
	if err := pub.Publish(context.Background(), ProgressionEvent{Type: EventDailyBonus}); err == nil {
		t.Fatal("expected publish error")
	}
}
