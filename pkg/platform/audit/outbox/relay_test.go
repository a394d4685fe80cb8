package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "jobmatch/pkg/domain"
	audit "jobmatch/pkg/platform/audit"
	"jobmatch/pkg/platform/audit/outbox"
	sinkmemory "jobmatch/pkg/platform/audit/sink/memory"
	"jobmatch/pkg/platform/audit/store/memory"
	"jobmatch/pkg/platform/retry"
)

var errSinkDown = errors.New("sink down")

type RelaySuite struct {
	suite.Suite
	ctx   context.Context
	clock *clockwork.FakeClock
	store *memory.InMemoryStore
	sink  *sinkmemory.Sink
	relay *outbox.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClock()
	s.store = memory.NewInMemoryStore(s.clock)
	s.sink = sinkmemory.New()
	s.relay = outbox.NewRelay(s.store, s.sink,
		outbox.WithClock(s.clock),
		outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		outbox.WithPollInterval(time.Second),
		outbox.WithMaxAttempts(2),
		outbox.WithRetryPolicy(retry.Policy{MaxAttempts: 1}),
	)
}

func (s *RelaySuite) append(app id.ApplicationID, event audit.Event) audit.Entry {
	e := audit.Entry{
		ID:            id.NewAuditEntryID(),
		ApplicationID: app,
		Event:         event,
		Timestamp:     s.clock.Now(),
	}
	s.Require().NoError(s.store.Append(s.ctx, e))
	return e
}

func (s *RelaySuite) TestFlushDeliversInInsertionOrder() {
	app := id.NewApplicationID()
	applied := s.append(app, audit.EventApplied)
	accepted := s.append(app, audit.EventAccepted)

	n, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	delivered := s.sink.Delivered()
	s.Require().Len(delivered, 2)
	s.Equal(applied.ID, delivered[0].ID)
	s.Equal(accepted.ID, delivered[1].ID)

	pending, err := s.store.Pending(s.ctx, 2)
	s.Require().NoError(err)
	s.Zero(pending)
}

func (s *RelaySuite) TestFailureStopsApplicationButNotOthers() {
	failing := id.NewApplicationID()
	healthy := id.NewApplicationID()
	first := s.append(failing, audit.EventApplied)
	s.append(failing, audit.EventAccepted)
	other := s.append(healthy, audit.EventApplied)

	s.sink.FailWith(func(e audit.Entry) error {
		if e.ID == first.ID {
			return errSinkDown
		}
		return nil
	})

	n, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	delivered := s.sink.Delivered()
	s.Require().Len(delivered, 1)
	s.Equal(other.ID, delivered[0].ID)
	s.Contains(s.store.LastError(first.ID), "sink down")

	// Sink recovers: the held entry follows the failed one in order.
	s.sink.FailWith(nil)
	n, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	delivered = s.sink.Delivered()
	s.Require().Len(delivered, 3)
	s.Equal(first.ID, delivered[1].ID)
	s.Equal(audit.EventAccepted, delivered[2].Event)
}

func (s *RelaySuite) TestEntryIsParkedAfterMaxAttempts() {
	e := s.append(id.NewApplicationID(), audit.EventCompleted)
	s.sink.FailWith(func(audit.Entry) error { return errSinkDown })

	for range 3 {
		_, err := s.relay.Flush(s.ctx)
		s.Require().NoError(err)
	}
	s.sink.FailWith(nil)

	n, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(n, "parked entries are not redelivered")
	s.Empty(s.sink.Delivered())
	s.NotEmpty(s.store.LastError(e.ID))
}

func (s *RelaySuite) TestRedeliveryIsIdempotent() {
	e := s.append(id.NewApplicationID(), audit.EventApplied)
	s.Require().NoError(s.sink.Deliver(s.ctx, e))

	_, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Len(s.sink.Delivered(), 1)
}

func TestRelay_RunFlushesOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := memory.NewInMemoryStore(clock)
	sink := sinkmemory.New()
	relay := outbox.NewRelay(store, sink,
		outbox.WithClock(clock),
		outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		outbox.WithPollInterval(5*time.Second),
	)

	e := audit.Entry{ID: id.NewAuditEntryID(), ApplicationID: id.NewApplicationID(), Event: audit.EventApplied}
	require.NoError(t, store.Append(context.Background(), e))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Empty(t, sink.Delivered(), "nothing delivered before the first tick")

	clock.Advance(5 * time.Second)
	assert.Eventually(t, func() bool { return len(sink.Delivered()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
