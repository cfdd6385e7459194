package nats

import (
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"

	"github.com/talentbridge/messaging/internal/feed"
)

func TestSubject(t *testing.T) {
	got := Subject("messages", feed.Filter{Column: "receiver_id", Value: "0190c0de-0000-7000-8000-000000000001"})
	assert.Equal(t, "feed.messages.receiver_id.0190c0de-0000-7000-8000-000000000001", got)
}

func TestConsumeSubscriptionStopsOnce(t *testing.T) {
	stops := 0
	sub := newConsumeSubscription()
	sub.stop = func() { stops++ }

	assert.NoError(t, sub.Unsubscribe())
	assert.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 1, stops)

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed after unsubscribe")
	}
	assert.NoError(t, sub.Err())
}

func TestConsumeSubscriptionReportsDrop(t *testing.T) {
	sub := newConsumeSubscription()
	sub.stop = func() {}
	assert.NoError(t, sub.Err())

	sub.end(feed.ErrDropped)
	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), feed.ErrDropped)

	assert.NoError(t, sub.Unsubscribe())
	assert.ErrorIs(t, sub.Err(), feed.ErrDropped)
}

func TestConsumerGone(t *testing.T) {
	assert.True(t, consumerGone(jetstream.ErrConsumerDeleted))
	assert.True(t, consumerGone(fmt.Errorf("consume: %w", nats.ErrConnectionClosed)))
	assert.False(t, consumerGone(jetstream.ErrNoHeartbeat))
}
