package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/packsmith/launcher/internal/testutil"
)

type QueueSuite struct {
	suite.Suite
	queue *Queue
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.queue = NewQueue(testutil.NopLogger())
}

func (s *QueueSuite) TearDownTest() {
	s.queue.Close()
}

func (s *QueueSuite) TestPostsRunInOrder() {
	var mu sync.Mutex
	got := []int{}
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		s.queue.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range got {
		s.Equal(i, v)
	}
}

func (s *QueueSuite) TestDoWaitsForCompletion() {
	ran := false
	s.Require().NoError(s.queue.Do(func() { ran = true }))
	s.True(ran)
}

func (s *QueueSuite) TestDoSerializesWithPosts() {
	counter := 0
	for i := 0; i < 10; i++ {
		s.queue.Post(func() { counter++ })
	}
	s.Require().NoError(s.queue.Do(func() { counter++ }))
	s.Equal(11, counter)
}

func (s *QueueSuite) TestPanicDoesNotKillQueue() {
	s.queue.Post(func() { panic("boom") })

	ran := false
	s.queue.Do(func() { ran = true })
	s.True(ran)
}

func (s *QueueSuite) TestCloseDrainsQueuedWork() {
	counter := 0
	for i := 0; i < 50; i++ {
		s.queue.Post(func() { counter++ })
	}
	s.queue.Close()
	s.Equal(50, counter)
}

func (s *QueueSuite) TestPostAfterCloseIsDropped() {
	s.queue.Close()
	s.queue.Post(func() { s.Fail("should not run") })
}

func (s *QueueSuite) TestDoAfterCloseReturnsError() {
	s.queue.Close()
	// Must not deadlock, and must not report success
	err := s.queue.Do(func() { s.Fail("should not run") })
	s.ErrorIs(err, ErrQueueClosed)
}
