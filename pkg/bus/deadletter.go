package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeadLetter is one rerouted message together with its failure metadata.
type DeadLetter struct {
	ID              string
	Stream          string
	Key             string
	Payload         []byte
	OriginStream    string
	OriginPartition string
	OriginID        string
	ErrorClass      string
	ErrorMessage    string
}

// DeadLetterReader consumes a channel's dead-letter stream on behalf of a
// monitoring group.
type DeadLetterReader struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

// NewDeadLetterReader ensures the monitoring group exists on the channel's
// dead-letter stream.
func (b *Bus) NewDeadLetterReader(ctx context.Context, channel, group, consumer string) (*DeadLetterReader, error) {
	stream := DeadLetterStream(channel)
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}
	return &DeadLetterReader{
		rdb:      b.rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    2 * time.Second,
	}, nil
}

// Fetch blocks up to the poll interval for the next dead-lettered entry.
// Nil, nil means the poll timed out.
func (r *DeadLetterReader) Fetch(ctx context.Context) (*DeadLetter, error) {
	res, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    1,
		Block:    r.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.stream, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}

	entry := res[0].Messages[0]
	dl := &DeadLetter{ID: entry.ID, Stream: r.stream}
	field := func(name string) string {
		if v, ok := entry.Values[name].(string); ok {
			return v
		}
		return ""
	}
	dl.Key = field(FieldKey)
	dl.Payload = []byte(field(FieldPayload))
	dl.OriginStream = field(FieldOriginStream)
	dl.OriginPartition = field(FieldOriginPartition)
	dl.OriginID = field(FieldOriginID)
	dl.ErrorClass = field(FieldErrorClass)
	dl.ErrorMessage = field(FieldErrorMessage)
	return dl, nil
}

// Ack advances the monitoring group cursor.
func (r *DeadLetterReader) Ack(ctx context.Context, id string) error {
	if err := r.rdb.XAck(ctx, r.stream, r.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, r.stream, err)
	}
	return nil
}
