// Package stream is the Redis Streams queue backing the pipeline stages.
package stream

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"mailgate_server/pkg/logger"
)

// Pipeline stage streams. Each stage has its own consumer group and worker
// pool.
const (
	StreamIngest   = "mail:ingest"
	StreamFilter   = "mail:filter"
	StreamClassify = "ai:classify"
	StreamDraft    = "draft:generate"
)

// Streams lists every pipeline stream in processing order.
var Streams = []string{StreamIngest, StreamFilter, StreamClassify, StreamDraft}

// RedisStream wraps one consumer group over the pipeline streams.
type RedisStream struct {
	client *redis.Client
	group  string
	log    *logger.Logger
}

// NewRedisStream creates a stream client bound to a consumer group.
func NewRedisStream(client *redis.Client, group string) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    logger.Default().WithField("component", "stream"),
	}
}

// CreateGroup ensures the consumer group exists on the stream.
func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// Publish appends one JSON-encoded entry to the stream.
func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume reads the stream as the named consumer until ctx is canceled.
// The handler owns acknowledgment: entries stay pending until explicitly
// acked, so a crash before a job settles leads to redelivery rather than
// loss.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(id string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("stream read error on %s", stream)
			}
			continue
		}

		for _, str := range streams {
			for _, msg := range str.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				if err := handler(msg.ID, []byte(data)); err != nil {
					s.log.WithError(err).Warn("handler error for %s on %s", msg.ID, stream)
				}
			}
		}
	}
}

// Ack acknowledges one entry.
func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

// ReclaimPending claims entries left unacknowledged longer than minIdle by
// a crashed or stalled consumer and hands them to the handler. One full
// scan of the pending list.
func (s *RedisStream) ReclaimPending(ctx context.Context, stream, consumer string, minIdle time.Duration, handler func(id string, data []byte) error) error {
	start := "0-0"
	for {
		msgs, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    s.group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			data, ok := msg.Values["data"].(string)
			if !ok {
				continue
			}
			if err := handler(msg.ID, []byte(data)); err != nil {
				s.log.WithError(err).Warn("reclaim handler error for %s on %s", msg.ID, stream)
			}
		}

		if next == "0-0" {
			return nil
		}
		start = next
	}
}

// Pending reports the group's unacknowledged entry count on a stream.
func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
