// Package queue holds the Redis-backed coordination primitives used by the
// sync pipeline: a consumer-group stream, a rate limiter, a per-key lock and a
// first-seen deduper.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const dataField = "data"

// Entry is one delivered stream message.
type Entry struct {
	ID   string
	Data []byte
	// Attempt is the delivery count including the current one.
	Attempt int64
}

// Decode unmarshals the entry payload into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Stream is an at-least-once work queue over a Redis stream and consumer group.
// Entries stay pending until acknowledged.
type Stream struct {
	rdb      *redis.Client
	name     string
	group    string
	consumer string
}

func NewStream(rdb *redis.Client, name, group, consumer string) *Stream {
	return &Stream{rdb: rdb, name: name, group: group, consumer: consumer}
}

func (s *Stream) Name() string { return s.name }

// DeadLetterName is the stream that receives entries past their attempt budget.
func (s *Stream) DeadLetterName() string { return s.name + ":dead" }

// EnsureGroup creates the stream and consumer group if missing.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.name, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s/%s: %w", s.name, s.group, err)
	}
	return nil
}

// Publish appends v as JSON and returns the stream entry id.
func (s *Stream) Publish(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.name,
		Values: map[string]interface{}{dataField: string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.name, err)
	}
	return id, nil
}

// Read returns up to count new entries for this consumer, blocking up to block.
// A timeout returns no entries and no error.
func (s *Stream) Read(ctx context.Context, count int64, block time.Duration) ([]Entry, error) {
	res, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.name, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			entries = append(entries, toEntry(msg, 1))
		}
	}
	return entries, nil
}

// Reclaim claims entries that have been pending longer than minIdle, typically
// left behind by a failed job or a crashed consumer.
func (s *Stream) Reclaim(ctx context.Context, minIdle time.Duration, count int64) ([]Entry, error) {
	pending, err := s.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.name,
		Group:  s.group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xpending %s: %w", s.name, err)
	}

	var entries []Entry
	for _, p := range pending {
		if p.Idle < minIdle {
			continue
		}
		claimed, err := s.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   s.name,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			return entries, fmt.Errorf("xclaim %s: %w", p.ID, err)
		}
		for _, msg := range claimed {
			entries = append(entries, toEntry(msg, p.RetryCount+1))
		}
	}
	return entries, nil
}

func (s *Stream) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.rdb.XAck(ctx, s.name, s.group, ids...).Err()
}

// DeadLetter copies the entry to the dead-letter stream with the failure reason
// and acknowledges the original.
func (s *Stream) DeadLetter(ctx context.Context, e Entry, reason string) error {
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.DeadLetterName(),
		Values: map[string]interface{}{
			dataField:     string(e.Data),
			"original_id": e.ID,
			"attempts":    e.Attempt,
			"reason":      reason,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.DeadLetterName(), err)
	}
	return s.Ack(ctx, e.ID)
}

func toEntry(msg redis.XMessage, attempt int64) Entry {
	var data []byte
	switch v := msg.Values[dataField].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	}
	return Entry{ID: msg.ID, Data: data, Attempt: attempt}
}
