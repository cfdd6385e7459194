package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversMatchingEvents(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ctx := context.Background()
	got := make(chan Event, 4)

	sub, err := hub.Subscribe(ctx, "messages", Filter{Column: "receiver_id", Value: "alice"}, func(ev Event) {
		got <- ev
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, hub.Publish(ctx, "messages", OpInsert, "m1", map[string]string{
		"receiver_id": "bob",
		"sender_id":   "alice",
	}))
	require.NoError(t, hub.Publish(ctx, "messages", OpInsert, "m2", map[string]string{
		"receiver_id": "alice",
		"sender_id":   "bob",
	}))

	select {
	case ev := <-got:
		assert.Equal(t, "m2", ev.RowID)
		assert.Equal(t, OpInsert, ev.Op)
		assert.Equal(t, "alice", ev.Filter.Value)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-got:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	filter := Filter{Column: "user_id", Value: "u1"}
	sub, err := hub.Subscribe(context.Background(), "notifications", filter, func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("notifications", filter))

	assert.NoError(t, sub.Unsubscribe())
	assert.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, hub.Subscribers("notifications", filter))

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed after unsubscribe")
	}
	assert.NoError(t, sub.Err())
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()

	sub, err := hub.Subscribe(context.Background(), "messages", Filter{Column: "receiver_id", Value: "a"}, func(Event) {})
	require.NoError(t, err)
	assert.NoError(t, sub.Err())

	require.NoError(t, hub.Close())

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription still live after hub close")
	}
	assert.ErrorIs(t, sub.Err(), ErrClosed)
	assert.NoError(t, sub.Unsubscribe())
	assert.ErrorIs(t, sub.Err(), ErrClosed)
}

func TestHubClosed(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	_, err := hub.Subscribe(context.Background(), "messages", Filter{Column: "receiver_id", Value: "a"}, func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, hub.Publish(context.Background(), "messages", OpInsert, "x", nil), ErrClosed)
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Column: "receiver_id", Value: "0190a1b2-c3d4"}.Validate())
	assert.Error(t, Filter{Column: "receiver_id"}.Validate())
	assert.Error(t, Filter{Column: "receiver_id", Value: "a.b"}.Validate())
	assert.Error(t, Filter{Column: "receiver_id", Value: "*"}.Validate())
}

func TestEventsSkipsEmptyKeys(t *testing.T) {
	now := time.Now()
	events := Events("messages", OpInsert, "m1", map[string]string{
		"sender_id":   "a",
		"receiver_id": "b",
		"other":       "",
	}, now)

	require.Len(t, events, 2)
	assert.Equal(t, "receiver_id", events[0].Filter.Column)
	assert.Equal(t, "sender_id", events[1].Filter.Column)
	assert.Equal(t, now, events[0].At)
}
