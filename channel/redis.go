package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces pub/sub channel names.
const DefaultRedisPrefix = "petsprite"

// RedisBus fans commands out through Redis PUBLISH/SUBSCRIBE so that several
// processes can share groups. The client reconnects on its own; commands
// published while a subscriber is disconnected are lost.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus creates a bus backed by the Redis server at addr.
func NewRedisBus(addr string, password string, db int, prefix string) *RedisBus {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisBusFromClient(rdb, prefix)
}

// NewRedisBusFromClient wraps an existing client.
func NewRedisBusFromClient(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBus{client: client, prefix: prefix}
}

// Ping checks that the server is reachable.
func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("channel: redis ping: %w", err)
	}
	return nil
}

func (b *RedisBus) key(group string) string {
	return b.prefix + ":" + NormalizeGroup(group)
}

// Publish sends cmd to every subscriber of group in every process.
func (b *RedisBus) Publish(ctx context.Context, group string, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("channel: encode command: %w", err)
	}
	if err := b.client.Publish(ctx, b.key(group), payload).Err(); err != nil {
		return fmt.Errorf("channel: redis publish: %w", err)
	}
	return nil
}

// Subscribe joins group. It returns once Redis has confirmed the
// subscription.
func (b *RedisBus) Subscribe(ctx context.Context, group string, h Handler) (Subscription, error) {
	key := b.key(group)
	ps := b.client.Subscribe(ctx, key)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("channel: redis subscribe %s: %w", key, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go sub.deliver(key, h)
	return sub, nil
}

// Close releases the underlying client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) deliver(key string, h Handler) {
	defer close(s.done)
	for msg := range s.ps.Channel() {
		var cmd Command
		if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
			log.Printf("channel: dropped malformed redis message channel=%q err=%v", key, err)
			continue
		}
		if h != nil {
			h(cmd)
		}
	}
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
