package events

import (
	"context"
	"sync"
)

// LocalBus delivers events to handlers in the same process, synchronously
// and in subscription order.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]*localHandler
}

type localHandler struct {
	ctx context.Context
	fn  func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]*localHandler)}
}

func (b *LocalBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.RLock()
	hs := append([]*localHandler(nil), b.handlers[stream]...)
	b.mu.RUnlock()

	for _, h := range hs {
		if h.ctx.Err() != nil {
			continue
		}
		h.fn(event)
	}
	return nil
}

// Subscribe registers handler until ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	h := &localHandler{ctx: ctx, fn: handler}

	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], h)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[stream]
		for i, x := range hs {
			if x == h {
				b.handlers[stream] = append(hs[:i], hs[i+1:]...)
				break
			}
		}
	}()
	return nil
}
