package events

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 64

type subscriber struct {
	tables []string
	ch     chan Change
}

// LocalBus fans changes out in-process. Slow subscribers lose changes instead of
// blocking publishers.
type LocalBus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	dropped atomic.Int64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*subscriber]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !matches(s.tables, c.Table) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, tables ...string) (<-chan Change, error) {
	s := &subscriber{tables: tables, ch: make(chan Change, subscriberBuffer)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()

	return s.ch, nil
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *LocalBus) Dropped() int64 {
	return b.dropped.Load()
}
