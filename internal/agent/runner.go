package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/queue"
	"codesift.app/codesift/internal/store"
)

type RunnerConfig struct {
	MaxAttempts int
}

// Runner drives one agent against its own consumer group on the results
// stream. Each agent gets its own Runner, so a failure in one agent's
// processing never delays or poisons its siblings.
type Runner struct {
	agent    Agent
	consumer queue.Consumer
	producer queue.Producer
	updates  store.AgentUpdateStore
	cfg      RunnerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRunner(agent Agent, consumer queue.Consumer, producer queue.Producer, updates store.AgentUpdateStore, cfg RunnerConfig) *Runner {
	return &Runner{
		agent:     agent,
		consumer:  consumer,
		producer:  producer,
		updates:   updates,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Agent:     logger.Ptr(r.agent.Name()),
		Component: "codesift.agent.runner",
	})

	slog.InfoContext(ctx, "agent runner started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			slog.InfoContext(ctx, "agent runner stopping")
			return nil
		default:
			if err := r.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Runner) processOneBatch(ctx context.Context) error {
	messages, err := r.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := r.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"run_id", msg.RunID)
			r.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (r *Runner) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", rec,
				"message_id", msg.ID,
				"run_id", msg.RunID)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (r *Runner) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     &msg.RunID,
		RepoPath:  &msg.RepoPath,
		MessageID: &msg.ID,
	})

	// Retries are published back onto the shared stream, so every group sees
	// them. Only the group that requeued the copy should process it.
	if msg.RetryGroup != "" && msg.RetryGroup != r.consumer.Group() {
		slog.DebugContext(ctx, "skipping retry copy for sibling group", "retry_group", msg.RetryGroup)
		return r.consumer.Ack(ctx, msg)
	}

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, fmt.Sprintf("agent.%s.handle", r.agent.Name()),
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing result", "attempt", msg.Attempt)

	var result model.AnalysisResult
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		// A payload that never parses will never parse on retry either.
		slog.ErrorContext(ctx, "undecodable payload, acknowledging to prevent loop", "error", err)
		return r.consumer.Ack(ctx, msg)
	}

	update, err := r.agent.Handle(ctx, result)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("agent %s handling result: %w", r.agent.Name(), err)
	}

	payload, err := json.Marshal(update)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("encoding agent update: %w", err)
	}

	var traceID *string
	if msg.TraceID != "" {
		traceID = logger.Ptr(msg.TraceID)
	}

	updateID, err := r.producer.Publish(ctx, r.agent.Stream(), queue.ResultMessage{
		RunID:    msg.RunID,
		RepoPath: msg.RepoPath,
		TraceID:  traceID,
		Payload:  payload,
	})
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("publishing agent update: %w", err)
	}

	if r.updates != nil {
		if err := r.updates.Create(ctx, msg.RunID, updateID, update); err != nil {
			// The update is already on the bus; a persistence miss is not
			// worth a redelivery that would publish it twice.
			slog.WarnContext(ctx, "failed to persist agent update", "error", err)
		}
	}

	if err := r.consumer.Ack(ctx, msg); err != nil {
		// Message will be reclaimed, handlers are idempotent so that's safe.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "agent update published",
		"action", update.Action,
		"update_message_id", updateID)
	return nil
}

func (r *Runner) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= r.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"run_id", msg.RunID,
			"attempts", msg.Attempt)
		if dlqErr := r.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"run_id", msg.RunID,
		"attempt", msg.Attempt)
	if requeueErr := r.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
