package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/packsmith/launcher/internal/dispatch"
	"github.com/packsmith/launcher/internal/testutil"
)

type RunnerSuite struct {
	suite.Suite
	queue  *dispatch.Queue
	view   *testutil.RecordingView
	runner *Runner
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.queue = dispatch.NewQueue(logger)
	s.view = &testutil.RecordingView{}
	s.runner = New(s.queue, s.view, logger)
}

func (s *RunnerSuite) TearDownTest() {
	s.queue.Close()
}

// outcome records which terminal callback fired
type outcome struct {
	mu        sync.Mutex
	successes []any
	failures  []error
	cancels   int
	done      chan struct{}
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

func (o *outcome) onSuccess(result any) {
	o.mu.Lock()
	o.successes = append(o.successes, result)
	o.mu.Unlock()
	close(o.done)
}

func (o *outcome) onFailure(err error) {
	o.mu.Lock()
	o.failures = append(o.failures, err)
	o.mu.Unlock()
	close(o.done)
}

func (o *outcome) onCancel() {
	o.mu.Lock()
	o.cancels++
	o.mu.Unlock()
	close(o.done)
}

func (s *RunnerSuite) TestSuccessInvokesOnlyOnSuccess() {
	o := newOutcome()
	s.runner.Submit("task",
		func(ctx context.Context) (any, error) { return "result", nil },
		o.onSuccess, o.onFailure, o.onCancel)
	<-o.done

	s.Equal([]any{"result"}, o.successes)
	s.Empty(o.failures)
	s.Equal(0, o.cancels)
}

func (s *RunnerSuite) TestFailureInvokesOnlyOnFailure() {
	boom := errors.New("boom")
	o := newOutcome()
	s.runner.Submit("task",
		func(ctx context.Context) (any, error) { return nil, boom },
		o.onSuccess, o.onFailure, o.onCancel)
	<-o.done

	s.Empty(o.successes)
	s.Equal([]error{boom}, o.failures)
	s.Equal(0, o.cancels)
}

func (s *RunnerSuite) TestCancelInvokesOnlyOnCancel() {
	block := make(chan struct{})
	o := newOutcome()
	handle := s.runner.Submit("task",
		func(ctx context.Context) (any, error) {
			<-block
			return "late result", nil
		},
		o.onSuccess, o.onFailure, o.onCancel)

	handle.Cancel()
	close(block)
	<-o.done

	// The function returned a result, but cancellation wins
	s.Empty(o.successes)
	s.Empty(o.failures)
	s.Equal(1, o.cancels)
}

func (s *RunnerSuite) TestCancelIsIdempotent() {
	block := make(chan struct{})
	o := newOutcome()
	handle := s.runner.Submit("task",
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			close(block)
			return nil, ctx.Err()
		},
		o.onSuccess, o.onFailure, o.onCancel)

	handle.Cancel()
	handle.Cancel()
	<-block
	<-o.done

	s.Equal(1, o.cancels)
}

func (s *RunnerSuite) TestZeroHandleCancelIsNoop() {
	var handle Handle
	handle.Cancel()
}

func (s *RunnerSuite) TestStartHonoursCancelBeforeTheWorkerRuns() {
	handle := NewHandle()
	handle.Cancel()

	o := newOutcome()
	s.runner.Start(handle, "task",
		func(ctx context.Context) (any, error) {
			return nil, ctx.Err()
		},
		o.onSuccess, o.onFailure, o.onCancel)
	<-o.done

	s.Empty(o.successes)
	s.Empty(o.failures)
	s.Equal(1, o.cancels)
}

func (s *RunnerSuite) TestStartDeliversContextFromHandle() {
	handle := NewHandle()
	o := newOutcome()
	s.runner.Start(handle, "task",
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		o.onSuccess, o.onFailure, o.onCancel)

	handle.Cancel()
	<-o.done

	s.Equal(1, o.cancels)
}

func (s *RunnerSuite) TestProgressShownForTaskDuration() {
	o := newOutcome()
	s.runner.Submit("task",
		func(ctx context.Context) (any, error) { return nil, nil },
		o.onSuccess, o.onFailure, o.onCancel)
	<-o.done
	s.queue.Do(func() {})

	begins, ends := s.view.ProgressCounts()
	s.Equal(1, begins)
	s.Equal(1, ends)
}

func (s *RunnerSuite) TestProgressAbortHookCancelsTask() {
	o := newOutcome()
	s.runner.Submit("task",
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		o.onSuccess, o.onFailure, o.onCancel)

	s.queue.Do(func() {}) // progress Begin has run, abort hook captured
	s.view.Abort()
	<-o.done

	s.Equal(1, o.cancels)
}

func (s *RunnerSuite) TestNilCallbacksTolerated() {
	done := make(chan struct{})
	s.runner.Submit("task",
		func(ctx context.Context) (any, error) { return nil, nil },
		func(any) { close(done) }, nil, nil)
	<-done

	s.runner.Submit("task",
		func(ctx context.Context) (any, error) { return nil, errors.New("boom") },
		nil, nil, nil)
	s.queue.Do(func() {})
}
