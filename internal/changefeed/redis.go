package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "changefeed:"

// RedisFeed Redis pub/sub 기반 변경 알림
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	if err := f.client.Publish(ctx, redisChannelPrefix+event.Relation, payload).Err(); err != nil {
		logger.Error("Failed to publish change event", err, map[string]interface{}{
			"relation": event.Relation,
			"id":       event.ID,
		})
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, relation string) (<-chan Event, error) {
	pubsub := f.client.Subscribe(ctx, redisChannelPrefix+relation)

	// wait for the subscription confirmation so a dead server fails here
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", relation, err)
	}

	out := make(chan Event, memoryBufferSize)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Warn("Discarding malformed change event", map[string]interface{}{
						"relation": relation,
						"error":    err.Error(),
					})
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *RedisFeed) Close() error {
	return nil
}
