//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "jobmatch/pkg/platform/audit"
	sinkmemory "jobmatch/pkg/platform/audit/sink/memory"
	"jobmatch/pkg/testutil/containers"
)

func TestProduceConsume_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	topic := "jobmatch.audit.it"
	producer, err := NewProducer(rp.Brokers, topic)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, producer.Ping(ctx))
	require.NoError(t, EnsureTopic(ctx, producer.Client(), topic, 3, 1))
	require.NoError(t, EnsureTopic(ctx, producer.Client(), topic, 3, 1), "existing topic is not an error")

	entries := []audit.Entry{sampleEntry(), sampleEntry()}
	for _, e := range entries {
		require.NoError(t, producer.Deliver(ctx, e))
	}

	sink := sinkmemory.New()
	consumer, err := NewConsumer(rp.Brokers, topic, "jobmatch-it", sink,
		WithConsumerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer consumer.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx) }()

	for _, e := range entries {
		assert.Eventually(t, func() bool {
			logs, err := sink.ListByApplicant(ctx, e.ApplicantID)
			return err == nil && len(logs) == 1 && logs[0].ID == e.ID
		}, 30*time.Second, 100*time.Millisecond)
	}

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
