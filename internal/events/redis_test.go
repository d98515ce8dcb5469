package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisPublisher_DeliversToTypedChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	pub := NewRedisPublisher(client, zap.NewNop())

	sub := client.Subscribe(ctx, pub.Channel(TypeInvoicePaid))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	evt := New(TypeInvoicePaid, "42", "99", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), map[string]any{"amount": "50"})
	require.NoError(t, pub.Publish(ctx, evt))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, evt.ID, got.ID)
		require.Equal(t, TypeInvoicePaid, got.Type)
		require.Equal(t, "99", got.InvoiceID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNewPublisher_FallsBackToLog(t *testing.T) {
	pub := NewPublisher(nil, zap.NewNop())
	_, ok := pub.(*LogPublisher)
	require.True(t, ok)
	require.NoError(t, pub.Publish(context.Background(), New(TypeInvoiceCreated, "1", "2", time.Now(), nil)))
}

type recordingPublisher struct {
	types []string
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.types = append(r.types, e.Type)
	return nil
}

func TestPublishAll_PreservesOrder(t *testing.T) {
	rec := &recordingPublisher{}
	now := time.Now()
	err := PublishAll(context.Background(), rec,
		New(TypeInvoicePaid, "1", "2", now, nil),
		New(TypeSubscriptionUpdated, "1", "2", now, nil),
	)
	require.NoError(t, err)
	require.Equal(t, []string{TypeInvoicePaid, TypeSubscriptionUpdated}, rec.types)
}
