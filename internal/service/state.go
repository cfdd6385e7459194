package service

// State is the lifecycle state of a live surface.
type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateSending     State = "sending"
	StateReconciling State = "reconciling"
	StateError       State = "error"
)

// latest is a one-slot channel where a new value replaces an unread one.
// Callers serialize publish and close.
type latest[T any] struct {
	ch     chan T
	closed bool
}

func newLatest[T any]() *latest[T] {
	return &latest[T]{ch: make(chan T, 1)}
}

func (l *latest[T]) publish(v T) {
	if l.closed {
		return
	}
	select {
	case <-l.ch:
	default:
	}
	select {
	case l.ch <- v:
	default:
	}
}

func (l *latest[T]) close() {
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}
