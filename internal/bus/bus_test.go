package bus

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/packsmith/launcher/internal/dispatch"
	"github.com/packsmith/launcher/internal/testutil"
)

type BusSuite struct {
	suite.Suite
	queue *dispatch.Queue
	bus   *Bus
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.queue = dispatch.NewQueue(logger)
	s.bus = New(s.queue, logger)
}

func (s *BusSuite) TearDownTest() {
	s.queue.Close()
}

// flush waits for queued deliveries to land
func (s *BusSuite) flush() {
	s.queue.Do(func() {})
}

func (s *BusSuite) TestDeliversToAllListenersInOrder() {
	got := []string{}
	s.bus.Subscribe(func() { got = append(got, "first") })
	s.bus.Subscribe(func() { got = append(got, "second") })
	s.bus.Subscribe(func() { got = append(got, "third") })

	s.bus.Post()
	s.flush()

	s.Equal([]string{"first", "second", "third"}, got)
}

func (s *BusSuite) TestUnsubscribeStopsDelivery() {
	count := 0
	token := s.bus.Subscribe(func() { count++ })

	s.bus.Post()
	s.flush()
	s.bus.Unsubscribe(token)
	s.bus.Post()
	s.flush()

	s.Equal(1, count)
}

func (s *BusSuite) TestUnsubscribeUnknownTokenIsNoop() {
	s.bus.Unsubscribe(Token(42))
}

func (s *BusSuite) TestListenerSetSnapshottedAtPost() {
	lateCalled := false
	s.bus.Subscribe(func() {
		// Subscribing during delivery must not affect this emission
		s.bus.Subscribe(func() { lateCalled = true })
	})

	s.bus.Post()
	s.flush()
	s.False(lateCalled)

	s.bus.Post()
	s.flush()
	s.True(lateCalled)
}

func (s *BusSuite) TestPanickingListenerIsIsolated() {
	secondRan := false
	s.bus.Subscribe(func() { panic("boom") })
	s.bus.Subscribe(func() { secondRan = true })

	s.bus.Post()
	s.flush()

	s.True(secondRan)
}

func (s *BusSuite) TestEveryPostDelivers() {
	count := 0
	s.bus.Subscribe(func() { count++ })

	s.bus.Post()
	s.bus.Post()
	s.bus.Post()
	s.flush()

	s.Equal(3, count)
}
