// Package changefeed carries row change notifications for orders and divisions.
// Events are hints: consumers refetch the row by id instead of trusting a payload.
package changefeed

import (
	"context"
	"errors"
	"time"
)

const (
	RelationOrders    = "orders"
	RelationDivisions = "divisions"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

var ErrFeedClosed = errors.New("change feed closed")

// Event 변경된 행의 식별자만 전달
type Event struct {
	Relation string    `json:"relation"`
	Type     EventType `json:"type"`
	ID       uint      `json:"id"`
	ParentID *uint     `json:"parent_id,omitempty"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber returns a channel of events for one relation. The channel is
// closed when ctx is done or the underlying transport drops; callers tell the
// two apart by checking ctx.Err().
type Subscriber interface {
	Subscribe(ctx context.Context, relation string) (<-chan Event, error)
}

type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// Nop discards published events. Used when a repository has no feed wired.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
