// Package broker is the only channel between relay processes: a thin
// publish/subscribe bridge with fire-and-forget publishes and best-effort,
// per-channel-ordered deliveries. No acknowledgement, no retry, no ordering
// across channels or processes.
package broker

import "context"

// Delivery is one record received from a subscribed channel.
type Delivery struct {
	Channel string
	Payload []byte
}

// Handler consumes deliveries. Handlers must tolerate malformed and unknown
// payloads; dropping them is the contract, crashing is not.
type Handler func(ctx context.Context, d Delivery)

// Broker fans records out to every subscribed process.
type Broker interface {
	// Publish sends a record to a channel. Fire-and-forget: a returned error
	// means the hand-off failed, never that delivery is guaranteed.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers a handler for the given channels and returns once
	// the subscription is established. Deliveries run until ctx is done.
	Subscribe(ctx context.Context, h Handler, channels ...string) error
	Close() error
}
