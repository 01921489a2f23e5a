package broker

import (
	"context"
	"sync"
)

// Memory is an in-process Broker. Deliveries happen synchronously in the
// publisher's goroutine, in publish order per channel, which makes it the
// reference broker for tests and a drop-in for single-process deployments.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]Handler)}
}

func (b *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[channel]))
	copy(handlers, b.subs[channel])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, Delivery{Channel: channel, Payload: payload})
	}
	return nil
}

func (b *Memory) Subscribe(_ context.Context, h Handler, channels ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		b.subs[ch] = append(b.subs[ch], h)
	}
	return nil
}

func (b *Memory) Close() error { return nil }
