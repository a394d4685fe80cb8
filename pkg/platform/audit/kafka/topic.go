// Package kafka carries audit entries over a Kafka topic.
//
// Producer is an audit.Sink for the outbox relay. Records are keyed by
// application id, so one application's entries land on one partition and
// keep their order. Consumer reads the topic back and materializes it into a
// queryable log store.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "jobmatch/pkg/platform/audit"
)

const headerEvent = "event"

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func encode(topic string, entry audit.Entry) (*kgo.Record, error) {
	value, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal audit entry: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(entry.ApplicationID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: headerEvent, Value: []byte(entry.Event)},
		},
	}, nil
}

func decode(rec *kgo.Record) (audit.Entry, error) {
	var entry audit.Entry
	if err := json.Unmarshal(rec.Value, &entry); err != nil {
		return audit.Entry{}, fmt.Errorf("unmarshal audit entry: %w", err)
	}
	if entry.ID.IsNil() || !entry.Event.IsValid() {
		return audit.Entry{}, fmt.Errorf("%w: id=%s event=%q", audit.ErrInvalidEntry, entry.ID, entry.Event)
	}
	return entry, nil
}
