package feed

import (
	"context"
	"sync"
	"time"
)

// Hub is an in-process Bus. Handlers run on a per-subscription goroutine so
// a slow handler never blocks publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*hubSub]struct{}
	closed bool
}

// NewHub creates an empty in-process bus.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*hubSub]struct{})}
}

type hubSub struct {
	hub  *Hub
	key  string
	h    Handler
	ch   chan Event
	once sync.Once
	done chan struct{}
	err  error
}

func hubKey(table string, f Filter) string {
	return table + "|" + f.Column + "|" + f.Value
}

// Publish implements Publisher.
func (h *Hub) Publish(ctx context.Context, table string, op Op, rowID string, keys map[string]string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	for _, ev := range Events(table, op, rowID, keys, time.Now()) {
		for s := range h.subs[hubKey(table, ev.Filter)] {
			select {
			case s.ch <- ev:
			default:
				// Subscriber is behind; it will re-pull anyway, one queued
				// event is enough to trigger that.
			}
		}
	}
	return nil
}

// Subscribe implements Subscriber.
func (h *Hub) Subscribe(ctx context.Context, table string, filter Filter, handler Handler) (Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	s := &hubSub{
		hub:  h,
		key:  hubKey(table, filter),
		h:    handler,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
	if h.subs[s.key] == nil {
		h.subs[s.key] = make(map[*hubSub]struct{})
	}
	h.subs[s.key][s] = struct{}{}

	go s.run()
	return s, nil
}

// Close drops every subscription; their Err reports ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []*hubSub
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[*hubSub]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.stop(ErrClosed)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for a table and filter.
func (h *Hub) Subscribers(table string, filter Filter) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[hubKey(table, filter)])
}

func (s *hubSub) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.ch:
			s.h(ev)
		}
	}
}

func (s *hubSub) stop(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Done implements Subscription.
func (s *hubSub) Done() <-chan struct{} {
	return s.done
}

// Err implements Subscription.
func (s *hubSub) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Unsubscribe implements Subscription.
func (s *hubSub) Unsubscribe() error {
	s.hub.mu.Lock()
	if set, ok := s.hub.subs[s.key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.subs, s.key)
		}
	}
	s.hub.mu.Unlock()
	s.stop(nil)
	return nil
}
