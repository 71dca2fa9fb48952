// Package tasks runs blocking work - identity provider calls - off the
// dispatch goroutine. Exactly one of a task's three terminal callbacks
// fires, on the dispatch queue, so the callback may mutate coordinator
// state freely.
package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/packsmith/launcher/internal/dispatch"
	"github.com/packsmith/launcher/internal/view"
)

// Runner executes background tasks and drives the progress indicator
type Runner struct {
	queue    *dispatch.Queue
	progress view.Progress
	logger   *slog.Logger
}

// New creates a Runner delivering callbacks on the given dispatch queue
func New(queue *dispatch.Queue, progress view.Progress, logger *slog.Logger) *Runner {
	return &Runner{
		queue:    queue,
		progress: progress,
		logger:   logger.With(slog.String("component", "tasks")),
	}
}

// Handle allows a running task to be cancelled
type Handle struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cancelOnce sync.Once
}

// NewHandle creates the handle, and the context governing the task, ahead
// of the task itself. Callers can publish the handle before the worker
// starts; a cancel arriving before Start still reaches the task, which
// then begins with an already-cancelled context.
func NewHandle() *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{ctx: ctx, cancel: cancel}
}

// Cancel requests cooperative cancellation. Cancelling a finished task,
// or a zero Handle, is a no-op.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// Submit runs the blocking function on a worker goroutine. The progress
// indicator is shown for the task's duration, with its abort hook wired to
// the returned handle. Exactly one of onSuccess, onFailure or onCancel is
// invoked on the dispatch queue; a cancelled task invokes only onCancel,
// regardless of what the blocking function returned.
func (r *Runner) Submit(title string, run func(ctx context.Context) (any, error), onSuccess func(any), onFailure func(error), onCancel func()) *Handle {
	handle := NewHandle()
	r.Start(handle, title, run, onSuccess, onFailure, onCancel)
	return handle
}

// Start is Submit for a handle made with NewHandle, for callers that must
// publish the handle before the worker can deliver a terminal callback
func (r *Runner) Start(handle *Handle, title string, run func(ctx context.Context) (any, error), onSuccess func(any), onFailure func(error), onCancel func()) {
	ctx, cancel := handle.ctx, handle.cancel

	r.queue.Post(func() {
		r.progress.Begin(title, handle.Cancel)
	})

	go func() {
		defer cancel()

		result, err := run(ctx)
		cancelled := ctx.Err() != nil

		r.queue.Post(func() {
			r.progress.End()
			switch {
			case cancelled:
				r.logger.Info("task cancelled", slog.String("task", title))
				if onCancel != nil {
					onCancel()
				}
			case err != nil:
				r.logger.Warn("task failed", slog.String("task", title), slog.Any("error", err))
				if onFailure != nil {
					onFailure(err)
				}
			default:
				if onSuccess != nil {
					onSuccess(result)
				}
			}
		})
	}()
}
