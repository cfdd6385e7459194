package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
)

// liveFeed keeps a surface in sync: it holds the push subscriptions and turns
// every event burst into one debounced re-pull. When subscribing fails, or a
// live subscription is dropped, it falls back to pulling on each retry until
// the push channel comes back.
type liveFeed struct {
	surface     string
	subscriber  feed.Subscriber
	table       string
	filters     []feed.Filter
	maxInterval time.Duration
	logger      *logger.Logger

	debouncer *Debouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	handles  []feed.Subscription
	gen      int
	pullOnly bool
	closed   bool
}

func newLiveFeed(surface string, sub feed.Subscriber, table string, filters []feed.Filter, cfg Config, log *logger.Logger, reconcile func()) *liveFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &liveFeed{
		surface:     surface,
		subscriber:  sub,
		table:       table,
		filters:     filters,
		maxInterval: cfg.ResubscribeMaxInterval,
		logger:      log,
		debouncer:   NewDebouncer(cfg.Debounce, reconcile),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// start subscribes. On failure it returns the error and keeps retrying in
// the background.
func (l *liveFeed) start() error {
	err := l.subscribeAll()
	if err == nil {
		return nil
	}

	l.mu.Lock()
	l.pullOnly = true
	l.wg.Add(1)
	l.mu.Unlock()

	go l.retry()
	return &SubscriptionError{Table: l.table, Err: err}
}

func (l *liveFeed) subscribeAll() error {
	var handles []feed.Subscription
	for _, f := range l.filters {
		h, err := l.subscriber.Subscribe(l.ctx, l.table, f, l.onEvent)
		if err != nil {
			for _, h := range handles {
				_ = h.Unsubscribe()
			}
			metrics.FeedSubscriptionFailuresTotal.WithLabelValues(l.surface).Inc()
			return err
		}
		handles = append(handles, h)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		for _, h := range handles {
			_ = h.Unsubscribe()
		}
		return nil
	}
	l.handles = handles
	l.gen++
	l.pullOnly = false
	for _, h := range handles {
		l.wg.Add(1)
		go l.watch(l.gen, h)
	}
	return nil
}

// watch waits for h to end. An end the feed did not ask for is a drop.
func (l *liveFeed) watch(gen int, h feed.Subscription) {
	defer l.wg.Done()
	select {
	case <-l.ctx.Done():
		return
	case <-h.Done():
	}
	l.dropped(gen, h.Err())
}

func (l *liveFeed) dropped(gen int, cause error) {
	l.mu.Lock()
	if l.closed || l.pullOnly || gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.pullOnly = true
	handles := l.handles
	l.handles = nil
	l.wg.Add(1)
	l.mu.Unlock()

	metrics.FeedSubscriptionFailuresTotal.WithLabelValues(l.surface).Inc()
	l.logger.Warn("change feed dropped, pulling instead",
		zap.String("table", l.table),
		zap.Error(cause),
	)
	for _, h := range handles {
		_ = h.Unsubscribe()
	}
	l.debouncer.Trigger()
	go l.retry()
}

func (l *liveFeed) retry() {
	defer l.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(500*time.Millisecond, l.maxInterval)
	b.MaxInterval = l.maxInterval
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(l.subscribeAll, backoff.WithContext(b, l.ctx), func(err error, next time.Duration) {
		l.logger.Warn("change feed unavailable, pulling instead",
			zap.String("table", l.table),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
		// Poll while the push channel is down.
		l.debouncer.Trigger()
	})
	if err != nil {
		return
	}

	l.logger.Info("change feed subscribed", zap.String("table", l.table))
	// Events may have been missed while disconnected.
	l.debouncer.Trigger()
}

func (l *liveFeed) onEvent(ev feed.Event) {
	l.logger.Debug("change event",
		zap.String("table", ev.Table),
		zap.String("op", string(ev.Op)),
		zap.String("row_id", ev.RowID),
	)
	l.debouncer.Trigger()
}

// isPullOnly reports whether the push channel is currently down.
func (l *liveFeed) isPullOnly() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pullOnly
}

// stop releases every subscription. Safe to call more than once.
func (l *liveFeed) stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	handles := l.handles
	l.handles = nil
	l.mu.Unlock()

	l.cancel()
	l.debouncer.Stop()
	l.wg.Wait()

	for _, h := range handles {
		if err := h.Unsubscribe(); err != nil {
			l.logger.Warn("unsubscribe failed", zap.String("table", l.table), zap.Error(err))
		}
	}
}
