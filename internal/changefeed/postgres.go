package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const postgresChannelPrefix = "changefeed_"

// PostgresFeed LISTEN/NOTIFY 기반 변경 알림 (Redis 없이 운영할 때)
type PostgresFeed struct {
	db  *gorm.DB
	dsn string

	minReconnect time.Duration
	maxReconnect time.Duration
}

func NewPostgresFeed(db *gorm.DB, dsn string) *PostgresFeed {
	return &PostgresFeed{
		db:           db,
		dsn:          dsn,
		minReconnect: time.Second,
		maxReconnect: 30 * time.Second,
	}
}

func (f *PostgresFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	if err := f.db.WithContext(ctx).
		Exec("SELECT pg_notify(?, ?)", postgresChannelPrefix+event.Relation, string(payload)).Error; err != nil {
		logger.Error("Failed to notify change event", err, map[string]interface{}{
			"relation": event.Relation,
			"id":       event.ID,
		})
		return fmt.Errorf("failed to notify change event: %w", err)
	}
	return nil
}

// Subscribe closes the returned channel when the listener connection is lost,
// since notifications sent while disconnected are gone.
func (f *PostgresFeed) Subscribe(ctx context.Context, relation string) (<-chan Event, error) {
	lost := make(chan struct{}, 1)
	listener := pq.NewListener(f.dsn, f.minReconnect, f.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if ev == pq.ListenerEventDisconnected || ev == pq.ListenerEventConnectionAttemptFailed {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})

	channel := postgresChannelPrefix + relation
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	out := make(chan Event, memoryBufferSize)
	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-lost:
				logger.Warn("Postgres change listener disconnected", map[string]interface{}{
					"relation": relation,
				})
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					// reconnected; events in between were missed
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(n.Extra), &event); err != nil {
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

func (f *PostgresFeed) Close() error {
	return nil
}
