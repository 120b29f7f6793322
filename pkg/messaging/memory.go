package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryBroker is an in-process Broker used by tests and local
// development runs that have no Redis available.
type MemoryBroker struct {
	mu       sync.Mutex
	channels map[string][]chan []byte
	closed   bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		channels: make(map[string][]chan []byte),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	b.mu.Lock()
	subs := append([]chan []byte(nil), b.channels[channel]...)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 100)

	b.mu.Lock()
	b.channels[channel] = append(b.channels[channel], ch)
	b.mu.Unlock()

	return ch, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.channels {
		for _, sub := range subs {
			close(sub)
		}
	}
	b.channels = make(map[string][]chan []byte)
	return nil
}
