package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event type names emitted by the listing workflow.
const (
	CreateListing = "create_listing"
	ListListings  = "list_listings"
)

// RedisSink appends analytics events to a Redis stream. Each entry has the
// fields event_time, event_type and payload (JSON text).
type RedisSink struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

// NewRedisSink writes to the stream key, e.g. "project.dataset.table".
func NewRedisSink(client *redis.Client, stream string) *RedisSink {
	return &RedisSink{client: client, stream: stream, now: time.Now}
}

// Stream returns the destination stream key.
func (s *RedisSink) Stream() string { return s.stream }

// Log appends one event. Callers treat failures as non-fatal.
func (s *RedisSink) Log(ctx context.Context, eventType string, payload map[string]interface{}) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("event sink not configured")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_time": s.now().UTC().Format(time.RFC3339Nano),
			"event_type": eventType,
			"payload":    string(b),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append %s to %s: %w", eventType, s.stream, err)
	}
	return nil
}
