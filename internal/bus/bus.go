// Package bus is the change notifier between the coordinator and UI views.
// Listeners are invoked on the dispatch queue in subscription order; a
// panicking listener is isolated so the rest still run.
package bus

import (
	"log/slog"
	"sync"

	"github.com/packsmith/launcher/internal/dispatch"
)

// Listener is notified after the roster has changed and been persisted.
// It runs on the dispatch goroutine and should re-read whatever state it
// renders.
type Listener func()

// Token identifies a subscription for later removal
type Token int

// Bus is a process-wide publish/subscribe change notifier
type Bus struct {
	queue  *dispatch.Queue
	logger *slog.Logger

	mu        sync.Mutex
	order     []Token
	listeners map[Token]Listener
	nextToken Token
}

// New creates a Bus delivering on the given dispatch queue
func New(queue *dispatch.Queue, logger *slog.Logger) *Bus {
	return &Bus{
		queue:     queue,
		logger:    logger.With(slog.String("component", "bus")),
		listeners: make(map[Token]Listener),
	}
}

// Subscribe registers a listener and returns its token
func (b *Bus) Subscribe(listener Listener) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextToken++
	token := b.nextToken
	b.order = append(b.order, token)
	b.listeners[token] = listener
	return token
}

// Unsubscribe removes a listener; unknown tokens are ignored
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.listeners[token]; !ok {
		return
	}
	delete(b.listeners, token)
	for i, existing := range b.order {
		if existing == token {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Post schedules a notification. The listener set is snapshotted now, so a
// listener subscribing during delivery is not invoked for this emission.
func (b *Bus) Post() {
	b.mu.Lock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, token := range b.order {
		snapshot = append(snapshot, b.listeners[token])
	}
	b.mu.Unlock()

	b.queue.Post(func() {
		for _, listener := range snapshot {
			b.deliver(listener)
		}
	})
}

func (b *Bus) deliver(listener Listener) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", slog.Any("panic", r))
		}
	}()
	listener()
}
