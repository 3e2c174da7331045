package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Memory is an in-process bus. Each subscription gets a buffered channel;
// when a subscriber falls behind, messages for it are dropped rather than
// blocking the publisher.
type Memory struct {
	mu         sync.RWMutex
	subs       map[string]map[*memorySubscription]struct{}
	bufferSize int
	closed     bool
}

func NewMemory(bufferSize int) *Memory {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Memory{
		subs:       make(map[string]map[*memorySubscription]struct{}),
		bufferSize: bufferSize,
	}
}

func (b *Memory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Published.IsZero() {
		msg.Published = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs[msg.Channel] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		bus:     b,
		channel: channel,
		ch:      make(chan Message, b.bufferSize),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many subscriptions are open on channel.
func (b *Memory) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	b.subs = make(map[string]map[*memorySubscription]struct{})
	return nil
}

type memorySubscription struct {
	bus     *Memory
	channel string
	ch      chan Message
	once    sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
	return nil
}

// closeLocked requires bus.mu held for writing.
func (s *memorySubscription) closeLocked() {
	s.once.Do(func() {
		delete(s.bus.subs[s.channel], s)
		close(s.ch)
	})
}
