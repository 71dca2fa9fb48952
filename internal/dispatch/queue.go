// Package dispatch provides the single-threaded execution context that owns
// all mutable launcher state. Roster mutations, change-bus delivery and
// task completion callbacks all run on the dispatch goroutine, so none of
// them ever race with each other.
package dispatch

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed reports work scheduled after Close
var ErrQueueClosed = errors.New("dispatch queue closed")

// ErrQueueFull reports a saturated work channel
var ErrQueueFull = errors.New("dispatch queue full")

// Queue is a serial executor backed by a single goroutine
type Queue struct {
	logger *slog.Logger

	work chan func()
	done chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewQueue creates a Queue and starts its goroutine
func NewQueue(logger *slog.Logger) *Queue {
	q := &Queue{
		logger: logger.With(slog.String("component", "dispatch")),
		work:   make(chan func(), 256),
		done:   make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case fn := <-q.work:
			q.invoke(fn)
		case <-q.done:
			// Drain anything already queued before stopping
			for {
				select {
				case fn := <-q.work:
					q.invoke(fn)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("panic on dispatch queue", slog.Any("panic", r))
		}
	}()
	fn()
}

// Post schedules fn to run on the dispatch goroutine. Posts are executed
// in order. If the queue is full or closed the call is dropped with a log.
func (q *Queue) Post(fn func()) {
	if err := q.tryPost(fn); err != nil {
		q.logger.Warn("post dropped", slog.Any("error", err))
	}
}

func (q *Queue) tryPost(fn func()) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.work <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do posts fn and waits for it to finish, or reports why it could not be
// scheduled. It must not be called from the dispatch goroutine itself;
// commands arriving from the user's thread use it to run against
// coordinator state safely.
func (q *Queue) Do(fn func()) error {
	ran := make(chan struct{})
	if err := q.tryPost(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	<-ran
	return nil
}

// Close stops the queue after draining already-posted work
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}
