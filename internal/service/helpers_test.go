package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store/memory"
	"github.com/talentbridge/messaging/pkg/logger"
)

type testEnv struct {
	hub           *feed.Hub
	messages      *memory.MessageStore
	notifications *memory.NotificationStore
	dir           *memory.Directory
	messenger     *Messenger
}

func testConfig() Config {
	return Config{
		StoreTimeout:           time.Second,
		Debounce:               5 * time.Millisecond,
		ResubscribeMaxInterval: 50 * time.Millisecond,
	}
}

func newTestEnv(t *testing.T, customize ...func(*Deps)) *testEnv {
	t.Helper()

	hub := feed.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	env := &testEnv{
		hub:           hub,
		messages:      memory.NewMessageStore(hub),
		notifications: memory.NewNotificationStore(hub),
		dir:           memory.NewDirectory(),
	}
	env.messages.SetClock(stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	env.notifications.SetClock(stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))

	env.dir.PutProfile(model.Profile{ID: "alice", FullName: "Alice Student"})
	env.dir.PutProfile(model.Profile{ID: "bob", FullName: "Bob Employer"})
	env.dir.PutProfile(model.Profile{ID: "carol", FullName: "Carol Recruiter"})
	env.dir.PutProfile(model.Profile{ID: "closed", FullName: "Closed Company", IsPrivate: true})

	deps := Deps{
		Messages:      env.messages,
		Notifications: env.notifications,
		Profiles:      env.dir,
		Applications:  env.dir,
		Feed:          hub,
	}
	for _, c := range customize {
		c(&deps)
	}
	env.messenger = NewMessenger(deps, testConfig(), logger.NewNop())
	return env
}

func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func countID(msgs []model.Message, id string) int {
	n := 0
	for _, m := range msgs {
		if m.ID == id {
			n++
		}
	}
	return n
}

// flakySubscriber fails the first n subscribe attempts.
type flakySubscriber struct {
	feed.Subscriber

	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakySubscriber) Subscribe(ctx context.Context, table string, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	f.mu.Lock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("push channel unavailable")
	}
	f.mu.Unlock()
	return f.Subscriber.Subscribe(ctx, table, filter, h)
}

// droppingSubscriber hands out subscriptions that dropAll can end as if
// the transport had lost them.
type droppingSubscriber struct {
	feed.Subscriber

	mu   sync.Mutex
	live []*droppableSub
}

func (d *droppingSubscriber) Subscribe(ctx context.Context, table string, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	inner, err := d.Subscriber.Subscribe(ctx, table, filter, h)
	if err != nil {
		return nil, err
	}
	sub := &droppableSub{Subscription: inner, done: make(chan struct{})}
	d.mu.Lock()
	d.live = append(d.live, sub)
	d.mu.Unlock()
	return sub, nil
}

func (d *droppingSubscriber) subscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *droppingSubscriber) dropAll() {
	d.mu.Lock()
	live := d.live
	d.live = nil
	d.mu.Unlock()
	for _, s := range live {
		_ = s.Subscription.Unsubscribe()
		s.end(feed.ErrDropped)
	}
}

type droppableSub struct {
	feed.Subscription

	once sync.Once
	done chan struct{}
	err  error
}

func (s *droppableSub) end(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *droppableSub) Unsubscribe() error {
	err := s.Subscription.Unsubscribe()
	s.end(nil)
	return err
}

func (s *droppableSub) Done() <-chan struct{} { return s.done }

func (s *droppableSub) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// flakyMessageStore fails Append and RangeByParticipants while broken is set.
type flakyMessageStore struct {
	*memory.MessageStore

	mu     sync.Mutex
	broken bool
}

func (s *flakyMessageStore) setBroken(b bool) {
	s.mu.Lock()
	s.broken = b
	s.mu.Unlock()
}

func (s *flakyMessageStore) isBroken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

func (s *flakyMessageStore) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if s.isBroken() {
		return nil, errors.New("connection reset")
	}
	return s.MessageStore.Append(ctx, msg)
}

func (s *flakyMessageStore) RangeByParticipants(ctx context.Context, a, b string) ([]model.Message, error) {
	if s.isBroken() {
		return nil, errors.New("connection reset")
	}
	return s.MessageStore.RangeByParticipants(ctx, a, b)
}
