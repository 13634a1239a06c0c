package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"mailgate_server/adapter/in/worker"
	"mailgate_server/pkg/logger"
)

// reclaimMinIdle is how long an entry must sit pending before startup
// reclaim considers its consumer dead.
const reclaimMinIdle = 5 * time.Minute

// Consumer moves stream entries into the stage pools. Entries are
// acknowledged by the pool once a job settles, so anything in flight when
// the process dies stays pending and is reclaimed on the next start.
type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	name   string
	log    *logger.Logger
}

// NewConsumer creates a consumer feeding the worker pool.
func NewConsumer(stream *RedisStream, pool *worker.Pool, name string) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
		log:    logger.Default().WithField("component", "stream_consumer"),
	}
}

// Start creates the consumer groups, reclaims entries orphaned by dead
// consumers, and reads every pipeline stream.
func (c *Consumer) Start(ctx context.Context) {
	for _, s := range Streams {
		if err := c.stream.CreateGroup(ctx, s); err != nil {
			c.log.WithError(err).Error("failed to create group for %s", s)
		}
	}

	for _, s := range Streams {
		if err := c.stream.ReclaimPending(ctx, s, c.name, reclaimMinIdle, c.handleEntry(ctx, s)); err != nil {
			c.log.WithError(err).Warn("failed to reclaim pending entries on %s", s)
		}
	}

	for _, s := range Streams {
		go c.consume(ctx, s)
	}
}

func (c *Consumer) consume(ctx context.Context, stream string) {
	c.stream.Consume(ctx, stream, c.name, c.handleEntry(ctx, stream))
}

// handleEntry decodes one entry and submits it to the pool. The entry is
// left pending for the pool to ack; only undecodable entries are acked
// here, as redelivering them can never succeed.
func (c *Consumer) handleEntry(ctx context.Context, stream string) func(id string, data []byte) error {
	return func(id string, data []byte) error {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			c.log.WithError(err).Error("dropping malformed entry %s on %s", id, stream)
			if ackErr := c.stream.Ack(ctx, stream, id); ackErr != nil {
				c.log.WithError(ackErr).Warn("failed to ack malformed entry %s", id)
			}
			return nil
		}

		msg := &worker.Message{
			ID:        job.ID,
			Type:      job.Type,
			Payload:   job.Payload,
			CreatedAt: job.CreatedAt,
			Stream:    stream,
			EntryID:   id,
		}

		if !c.pool.Submit(msg) {
			// Leave the entry pending; it is redelivered once the pool is up.
			return fmt.Errorf("pool rejected job %s (%s)", job.ID, job.Type)
		}
		return nil
	}
}
