package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ResultMessage is the envelope published to a stream. Payload carries the
// UTF-8 JSON body (an analysis result or an agent update); the remaining
// fields are routing and retry metadata kept outside the payload so consumers
// can act on them without unmarshalling.
type ResultMessage struct {
	RunID    int64
	RepoPath string
	TraceID  *string
	Attempt  int
	Payload  []byte
}

type Producer interface {
	// Publish appends msg to stream and returns the broker-assigned message ID.
	Publish(ctx context.Context, stream string, msg ResultMessage) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		logger: logger,
	}
}

func (p *redisProducer) Publish(ctx context.Context, stream string, msg ResultMessage) (string, error) {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"run_id":    msg.RunID,
		"repo_path": msg.RepoPath,
		"attempt":   attempt,
		"payload":   string(msg.Payload),
	}

	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publishing to %s: %w", stream, err)
	}

	p.logger.InfoContext(ctx, "published message", "stream", stream, "message_id", id, "run_id", msg.RunID, "repo_path", msg.RepoPath, "attempt", attempt)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
