package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures the Redis transport.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	BufferSize int
	Logger     *slog.Logger
}

// Redis carries messages over Redis PUBLISH/SUBSCRIBE so the webhook
// receiver and viewers can live in different processes. The Redis
// channel name is the bus channel name; the payload is the JSON-encoded
// Message.
type Redis struct {
	client     *redis.Client
	bufferSize int
	logger     *slog.Logger
}

func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.BufferSize, opts.Logger)
}

func NewRedisWithClient(client *redis.Client, bufferSize int, logger *slog.Logger) *Redis {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, bufferSize: bufferSize, logger: logger}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	payload, err := encodeRedisPayload(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, msg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s/%s: %w", msg.Channel, msg.Event, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed so no message
	// published after Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Message, r.bufferSize),
		done:   make(chan struct{}),
	}
	go sub.pump(r.logger)
	return sub, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(logger *slog.Logger) {
	defer close(s.ch)
	for raw := range s.pubsub.Channel() {
		msg, err := decodeRedisPayload(raw.Channel, raw.Payload)
		if err != nil {
			logger.Warn("bus: dropping undecodable message", "channel", raw.Channel, "error", err)
			continue
		}
		select {
		case s.ch <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func encodeRedisPayload(msg Message) (string, error) {
	if msg.Published.IsZero() {
		msg.Published = time.Now().UTC()
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message %s: %w", msg.ID, err)
	}
	return string(encoded), nil
}

func decodeRedisPayload(channel, payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, err
	}
	if msg.Channel == "" {
		msg.Channel = channel
	}
	if msg.Event == "" {
		return Message{}, fmt.Errorf("message %q has no event name", msg.ID)
	}
	return msg, nil
}
