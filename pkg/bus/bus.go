// Package bus is the message transport: Redis Streams with consumer groups.
// The inbound channel is sharded into one stream per partition so each
// partition can be consumed strictly in order by its own worker, while
// distinct partitions proceed concurrently. Stream entry IDs play the offset
// role.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fraudwatch/pkg/structlog"
)

// Stream entry field names.
const (
	FieldKey     = "key"
	FieldPayload = "payload"

	// Dead-letter metadata fields.
	FieldOriginStream    = "origin-stream"
	FieldOriginPartition = "origin-partition"
	FieldOriginID        = "origin-id"
	FieldErrorClass      = "error-class"
	FieldErrorMessage    = "error-message"
)

// DeadLetterSuffix is appended to a channel name to derive its dead-letter
// destination.
const DeadLetterSuffix = "-dlt"

// PartitionStream names the stream backing one partition of a channel.
func PartitionStream(channel string, partition int) string {
	return fmt.Sprintf("%s:%d", channel, partition)
}

// DeadLetterStream names the dead-letter destination for a channel.
func DeadLetterStream(channel string) string {
	return channel + DeadLetterSuffix
}

// Message is one inbound stream entry.
type Message struct {
	ID        string
	Channel   string
	Partition int
	Key       string
	Payload   []byte
}

// Bus wraps a Redis client with the stream conventions above.
type Bus struct {
	rdb *redis.Client
	log *structlog.Logger
}

// New builds a Bus on an existing client.
func New(rdb *redis.Client, log *structlog.Logger) *Bus {
	return &Bus{rdb: rdb, log: log}
}

// Connect creates a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string, log *structlog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(rdb, log), nil
}

// Close releases the underlying client.
func (b *Bus) Close() error { return b.rdb.Close() }

// Publish appends an entry keyed by the given id to a stream.
func (b *Bus) Publish(ctx context.Context, stream, key string, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			FieldKey:     key,
			FieldPayload: string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// PublishDeadLetter reroutes a failed message to the channel's dead-letter
// stream, preserving the original payload and attaching failure metadata.
func (b *Bus) PublishDeadLetter(ctx context.Context, msg *Message, class string, cause error) error {
	dlt := DeadLetterStream(msg.Channel)
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: dlt,
		Values: map[string]interface{}{
			FieldKey:             msg.Key,
			FieldPayload:         string(msg.Payload),
			FieldOriginStream:    PartitionStream(msg.Channel, msg.Partition),
			FieldOriginPartition: msg.Partition,
			FieldOriginID:        msg.ID,
			FieldErrorClass:      class,
			FieldErrorMessage:    cause.Error(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to dead-letter %s: %w", dlt, err)
	}
	return nil
}

// GroupReader consumes one partition stream on behalf of a consumer group,
// one entry at a time.
type GroupReader struct {
	rdb       *redis.Client
	channel   string
	partition int
	stream    string
	group     string
	consumer  string
	block     time.Duration
}

// NewGroupReader ensures the group exists (creating the stream if needed) and
// returns a reader positioned at the group's cursor.
func (b *Bus) NewGroupReader(ctx context.Context, channel string, partition int, group, consumer string) (*GroupReader, error) {
	stream := PartitionStream(channel, partition)
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}
	return &GroupReader{
		rdb:       b.rdb,
		channel:   channel,
		partition: partition,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		block:     2 * time.Second,
	}, nil
}

// Fetch blocks up to the reader's poll interval for the next entry. A nil
// message with a nil error means the poll timed out and the caller should
// loop.
func (r *GroupReader) Fetch(ctx context.Context) (*Message, error) {
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
	msg := &Message{
		ID:        entry.ID,
		Channel:   r.channel,
		Partition: r.partition,
	}
	if v, ok := entry.Values[FieldKey].(string); ok {
		msg.Key = v
	}
	if v, ok := entry.Values[FieldPayload].(string); ok {
		msg.Payload = []byte(v)
	}
	return msg, nil
}

// Ack advances the group cursor past the entry. Called after handling,
// whatever the outcome, so a poison message never causes a redelivery loop.
func (r *GroupReader) Ack(ctx context.Context, id string) error {
	if err := r.rdb.XAck(ctx, r.stream, r.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, r.stream, err)
	}
	return nil
}

// Stream returns the underlying stream name.
func (r *GroupReader) Stream() string { return r.stream }

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
