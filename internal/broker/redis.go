package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis bridges processes over Redis pub/sub. Publishing and subscribing use
// independent clients because a Redis connection in subscriber mode cannot
// issue regular commands.
type Redis struct {
	log *slog.Logger
	pub *redis.Client
	sub *redis.Client
}

// NewRedis opens the two broker connections. Connectivity is verified lazily
// on first use; failures surface from Publish and Subscribe.
func NewRedis(log *slog.Logger, opts *redis.Options) *Redis {
	subOpts := *opts
	return &Redis{
		log: log,
		pub: redis.NewClient(opts),
		sub: redis.NewClient(&subOpts),
	}
}

// Publish sends a record to a channel. Delivery beyond the Redis hand-off is
// best-effort.
func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.pub.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe attaches the handler to the given channels. It blocks until the
// subscription is confirmed, then consumes deliveries on a background
// goroutine until ctx is cancelled.
func (b *Redis) Subscribe(ctx context.Context, h Handler, channels ...string) error {
	ps := b.sub.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe %v: %w", channels, err)
	}
	b.log.Info("broker subscription established", "channels", channels)

	go func() {
		defer ps.Close()
		deliveries := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-deliveries:
				if !ok {
					return
				}
				h(ctx, Delivery{Channel: m.Channel, Payload: []byte(m.Payload)})
			}
		}
	}()
	return nil
}

// Ping reports broker connectivity, used by the health endpoint.
func (b *Redis) Ping(ctx context.Context) error {
	return b.pub.Ping(ctx).Err()
}

// Close releases both broker connections.
func (b *Redis) Close() error {
	subErr := b.sub.Close()
	if err := b.pub.Close(); err != nil {
		return err
	}
	return subErr
}
