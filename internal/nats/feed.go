package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
)

const (
	// StreamName is the name of the change-feed stream.
	StreamName = "CHANGEFEED"

	// SubjectPrefix is the prefix for all change-feed subjects.
	SubjectPrefix = "feed"
)

// Subject returns the subject events for table and filter are published on.
func Subject(table string, f feed.Filter) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, table, f.Column, f.Value)
}

// FeedBus is a feed.Bus on a JetStream stream. Each subscription is an
// ordered consumer that starts at the next published event.
type FeedBus struct {
	client *Client
	logger *logger.Logger
}

// NewFeedBus creates a change-feed bus on the client.
func NewFeedBus(client *Client, log *logger.Logger) *FeedBus {
	return &FeedBus{client: client, logger: log}
}

// EnsureStream ensures the change-feed stream exists with proper configuration.
func (b *FeedBus) EnsureStream(ctx context.Context) error {
	js := b.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	// Events only trigger re-pulls, nobody replays old ones.
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Row change events for messages and notifications",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Publish implements feed.Publisher.
func (b *FeedBus) Publish(ctx context.Context, table string, op feed.Op, rowID string, keys map[string]string) error {
	for _, ev := range feed.Events(table, op, rowID, keys, time.Now().UTC()) {
		if err := ev.Filter.Validate(); err != nil {
			return err
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		if _, err := b.client.JetStream().Publish(ctx, Subject(table, ev.Filter), data); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}
	return nil
}

// Subscribe implements feed.Subscriber.
func (b *FeedBus) Subscribe(ctx context.Context, table string, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if !b.client.IsConnected() {
		return nil, fmt.Errorf("failed to subscribe: %w", feed.ErrClosed)
	}

	subject := Subject(table, filter)
	consumer, err := b.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	sub := newConsumeSubscription()
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev feed.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			b.logger.Warn("dropping malformed feed event",
				zap.String("subject", msg.Subject()),
				zap.Error(err),
			)
			return
		}
		metrics.FeedEventsTotal.WithLabelValues(table).Inc()
		h(ev)
	}, jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
		if consumerGone(err) {
			b.logger.Warn("change feed consumer ended", zap.String("subject", subject), zap.Error(err))
			sub.end(fmt.Errorf("%w: %v", feed.ErrDropped, err))
			go cc.Stop()
			return
		}
		// The ordered consumer recreates itself; re-pull in case that skipped anything.
		h(feed.Event{Table: table, Op: feed.OpResync, Filter: filter, At: time.Now().UTC()})
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	sub.stop = cc.Stop
	return sub, nil
}

func consumerGone(err error) bool {
	return errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrConsumerNotFound) ||
		errors.Is(err, nats.ErrConnectionClosed)
}

// Close is a no-op; the connection is owned by the Client.
func (b *FeedBus) Close() error {
	return nil
}

type consumeSubscription struct {
	stop     func()
	stopOnce sync.Once
	endOnce  sync.Once
	done     chan struct{}
	err      error
}

func newConsumeSubscription() *consumeSubscription {
	return &consumeSubscription{done: make(chan struct{})}
}

func (s *consumeSubscription) end(err error) {
	s.endOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *consumeSubscription) Unsubscribe() error {
	if s.stop != nil {
		s.stopOnce.Do(s.stop)
	}
	s.end(nil)
	return nil
}

func (s *consumeSubscription) Done() <-chan struct{} {
	return s.done
}

func (s *consumeSubscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
