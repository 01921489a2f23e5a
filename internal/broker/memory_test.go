package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDeliversToSubscribedChannelOnly(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	var got []Delivery
	err := b.Subscribe(ctx, func(_ context.Context, d Delivery) {
		got = append(got, d)
	}, "MESSAGES")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "MESSAGES", []byte("one")))
	require.NoError(t, b.Publish(ctx, "USER_CONNECTIONS", []byte("ignored")))
	require.NoError(t, b.Publish(ctx, "MESSAGES", []byte("two")))

	require.Len(t, got, 2)
	require.Equal(t, "MESSAGES", got[0].Channel)
	require.Equal(t, []byte("one"), got[0].Payload)
	require.Equal(t, []byte("two"), got[1].Payload)
}

func TestMemoryFansOutToEverySubscriber(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	var a, c int
	require.NoError(t, b.Subscribe(ctx, func(context.Context, Delivery) { a++ }, "MESSAGES"))
	require.NoError(t, b.Subscribe(ctx, func(context.Context, Delivery) { c++ }, "MESSAGES", "USER_CONNECTIONS"))

	require.NoError(t, b.Publish(ctx, "MESSAGES", []byte("x")))
	require.NoError(t, b.Publish(ctx, "USER_CONNECTIONS", []byte("y")))

	require.Equal(t, 1, a)
	require.Equal(t, 2, c)
}

func TestMemoryPublishWithoutSubscribers(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Publish(context.Background(), "MESSAGES", []byte("dropped")))
}
