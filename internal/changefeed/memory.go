package changefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

const memoryBufferSize = 256

var ErrFeedUnavailable = errors.New("change feed unavailable")

type memorySub struct {
	ch   chan Event
	once sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() { close(s.ch) })
}

// MemoryFeed in-process feed for single-instance deployments and tests
type MemoryFeed struct {
	mu          sync.Mutex
	subs        map[string][]*memorySub
	unavailable bool
	closed      bool
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string][]*memorySub)}
}

func (f *MemoryFeed) Publish(ctx context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}

	for _, sub := range f.subs[event.Relation] {
		select {
		case sub.ch <- event:
		default:
			// a dropped hint is recovered by the periodic refetch
			logger.Warn("Change feed subscriber buffer full, dropping event", map[string]interface{}{
				"relation": event.Relation,
				"id":       event.ID,
			})
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, relation string) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}
	if f.unavailable {
		return nil, ErrFeedUnavailable
	}

	sub := &memorySub{ch: make(chan Event, memoryBufferSize)}
	f.subs[relation] = append(f.subs[relation], sub)

	go func() {
		<-ctx.Done()
		f.remove(relation, sub)
	}()

	return sub.ch, nil
}

func (f *MemoryFeed) remove(relation string, target *memorySub) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subs[relation]
	for i, sub := range subs {
		if sub == target {
			f.subs[relation] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	target.close()
}

// Disconnect drops every subscription of relation, as a broken transport would.
func (f *MemoryFeed) Disconnect(relation string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subs[relation] {
		sub.close()
	}
	delete(f.subs, relation)
}

// SetUnavailable makes new subscriptions fail until reset.
func (f *MemoryFeed) SetUnavailable(unavailable bool) {
	f.mu.Lock()
	f.unavailable = unavailable
	f.mu.Unlock()
}

func (f *MemoryFeed) SubscriberCount(relation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[relation])
}

func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	for relation, subs := range f.subs {
		for _, sub := range subs {
			sub.close()
		}
		delete(f.subs, relation)
	}
	return nil
}
