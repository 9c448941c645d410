package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher announces domain events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher pushes event envelopes onto a Redis list
type RedisPublisher struct {
	rdb       *redis.Client
	queueName string
	logger    *slog.Logger
}

// NewRedisPublisher creates a publisher targeting the given list
func NewRedisPublisher(rdb *redis.Client, queueName string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		rdb:       rdb,
		queueName: queueName,
		logger:    logger,
	}
}

// Publish serialises the event and LPUSHes it to the queue
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	envelope, err := NewEnvelope(e, time.Now().UTC())
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, data).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	p.logger.Debug("published event",
		slog.String("event_id", envelope.ID),
		slog.String("type", string(envelope.Type)),
		slog.String("queue", p.queueName),
	)
	return nil
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// LogPublisher only logs events; used when no Redis is configured
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.Info("event", slog.String("type", string(e.EventType())), slog.Any("payload", e))
	return nil
}
