// Package redisfeed implements the change feed on Redis pub/sub.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
)

// NewClient parses url, connects and pings.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Channel returns the pub/sub channel for table and filter.
func Channel(table string, f feed.Filter) string {
	return "feed:" + table + ":" + f.Column + ":" + f.Value
}

// Bus is a feed.Bus on Redis pub/sub. Delivery is at most once; missed
// events are covered by the next pull.
type Bus struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// NewBus creates a bus on rdb.
func NewBus(rdb *redis.Client, log *logger.Logger) *Bus {
	return &Bus{rdb: rdb, logger: log}
}

// Publish implements feed.Publisher.
func (b *Bus) Publish(ctx context.Context, table string, op feed.Op, rowID string, keys map[string]string) error {
	for _, ev := range feed.Events(table, op, rowID, keys, time.Now().UTC()) {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := b.rdb.Publish(ctx, Channel(table, ev.Filter), data).Err(); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}
	return nil
}

// Subscribe implements feed.Subscriber. It returns once Redis confirmed the
// subscription.
func (b *Bus) Subscribe(ctx context.Context, table string, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	ps := b.rdb.Subscribe(ctx, Channel(table, filter))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &subscription{
		ps:     ps,
		table:  table,
		filter: filter,
		h:      h,
		logger: b.logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

// Close closes the underlying client.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

type subscription struct {
	ps     *redis.PubSub
	table  string
	filter feed.Filter
	h      feed.Handler
	logger *logger.Logger

	once sync.Once
	quit chan struct{}
	done chan struct{}
	err  error
}

// run delivers messages until Unsubscribe or until the PubSub gives up.
// go-redis resubscribes after a reconnect and reports it with a
// subscription message; anything published in between is lost, so that
// message becomes a resync event.
func (s *subscription) run() {
	defer close(s.done)

	ch := s.ps.ChannelWithSubscriptions()
	for {
		select {
		case <-s.quit:
			return
		case msg, ok := <-ch:
			if !ok {
				select {
				case <-s.quit:
				default:
					s.err = feed.ErrDropped
				}
				return
			}
			s.handle(msg)
		}
	}
}

func (s *subscription) handle(msg interface{}) {
	switch m := msg.(type) {
	case *redis.Subscription:
		if m.Kind != "subscribe" {
			return
		}
		s.logger.Info("change feed resubscribed", zap.String("channel", m.Channel))
		s.h(feed.Event{Table: s.table, Op: feed.OpResync, Filter: s.filter, At: time.Now().UTC()})
	case *redis.Message:
		var ev feed.Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			s.logger.Warn("dropping malformed feed event",
				zap.String("channel", m.Channel),
				zap.Error(err),
			)
			return
		}
		metrics.FeedEventsTotal.WithLabelValues(s.table).Inc()
		s.h(ev)
	}
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

func (s *subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
