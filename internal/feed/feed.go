// Package feed defines the change-feed primitive: row-level change events
// pushed to subscribers scoped by a column filter.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrClosed is returned when publishing or subscribing on a closed bus.
	ErrClosed = errors.New("feed closed")

	// ErrDropped is reported by a subscription the transport ended on its own.
	ErrDropped = errors.New("feed subscription dropped")
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"

	// OpResync tells subscribers that events may have been missed, for
	// example across a transport reconnect. It names no row.
	OpResync Op = "RESYNC"
)

// Filter scopes a subscription to rows where Column equals Value.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

func (f Filter) String() string {
	return f.Column + "=" + f.Value
}

// Validate rejects empty filters and values that cannot form a subject.
func (f Filter) Validate() error {
	if f.Column == "" || f.Value == "" {
		return fmt.Errorf("feed: empty filter %q", f.String())
	}
	if strings.ContainsAny(f.Column+f.Value, " .*>:\t\n") {
		return fmt.Errorf("feed: filter %q contains reserved characters", f.String())
	}
	return nil
}

// Event announces that a row changed. It deliberately carries no row content;
// subscribers re-read the authoritative store.
type Event struct {
	Table  string    `json:"table"`
	Op     Op        `json:"op"`
	RowID  string    `json:"row_id"`
	Filter Filter    `json:"filter"`
	At     time.Time `json:"at"`
}

// Handler receives events. It must not block for long.
type Handler func(Event)

// Subscription is a live registration. Unsubscribe is idempotent.
//
// Done is closed once the subscription stops delivering, whether through
// Unsubscribe or because the transport dropped it. Err is nil until Done is
// closed, stays nil after Unsubscribe, and otherwise reports why it ended.
type Subscription interface {
	Unsubscribe() error
	Done() <-chan struct{}
	Err() error
}

// Publisher announces row changes. Each key becomes one event, delivered to
// subscribers whose filter matches that column and value.
type Publisher interface {
	Publish(ctx context.Context, table string, op Op, rowID string, keys map[string]string) error
}

// Subscriber registers handlers for a table and filter.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter Filter, h Handler) (Subscription, error)
}

// Bus is both ends of a change feed.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Events expands keys into one event per filter, in a stable column order.
func Events(table string, op Op, rowID string, keys map[string]string, at time.Time) []Event {
	cols := make([]string, 0, len(keys))
	for c := range keys {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	events := make([]Event, 0, len(cols))
	for _, c := range cols {
		if keys[c] == "" {
			continue
		}
		events = append(events, Event{
			Table:  table,
			Op:     op,
			RowID:  rowID,
			Filter: Filter{Column: c, Value: keys[c]},
			At:     at,
		})
	}
	return events
}

// NoopPublisher discards events. Used when stores run without a feed.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, string, Op, string, map[string]string) error {
	return nil
}
