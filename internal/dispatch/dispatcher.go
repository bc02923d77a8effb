package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/queue"
)

// PublishError reports that a finished result could not be handed to the
// message bus. The analysis itself succeeded, so callers surface the result
// anyway and report the publish failure alongside it.
type PublishError struct {
	Stream string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing result to %s: %v", e.Stream, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// IsPublishError reports whether err is (or wraps) a PublishError.
func IsPublishError(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}

// RunMeta identifies the analysis run a result belongs to.
type RunMeta struct {
	RunID    int64
	RepoPath string
	Revision string
	Kind     string
	AIModel  string
}

// Dispatcher attaches run metadata to a result and publishes it to the
// results stream for downstream consumption.
type Dispatcher struct {
	producer queue.Producer
	stream   string
}

func New(producer queue.Producer, stream string) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		stream:   stream,
	}
}

// Dispatch stamps result.Metadata from meta and, when the result carries at
// least one issue, publishes it. A clean result is not worth a message: the
// returned message ID is empty and no publish happens. The result is mutated
// in place so the caller returns the same stamped object it dispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, result *model.AnalysisResult, meta RunMeta) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     &meta.RunID,
		RepoPath:  &meta.RepoPath,
		Component: "codesift.dispatch",
	})

	result.Metadata = &model.Metadata{
		RepoPath:      meta.RepoPath,
		CommitHash:    meta.Revision,
		AnalysisType:  meta.Kind,
		Timestamp:     time.Now().UTC(),
		FilesAnalyzed: result.RepositoryAnalysis.TotalFiles,
		AIModel:       meta.AIModel,
	}

	if len(result.Issues) == 0 {
		slog.InfoContext(ctx, "no issues found, skipping publish")
		return "", nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", &PublishError{Stream: d.stream, Err: fmt.Errorf("encoding result: %w", err)}
	}

	var traceID *string
	if id := logger.TraceIDFrom(ctx); id != "" {
		traceID = logger.Ptr(id)
	}

	id, err := d.producer.Publish(ctx, d.stream, queue.ResultMessage{
		RunID:    meta.RunID,
		RepoPath: meta.RepoPath,
		TraceID:  traceID,
		Payload:  payload,
	})
	if err != nil {
		return "", &PublishError{Stream: d.stream, Err: err}
	}

	slog.InfoContext(ctx, "result dispatched",
		"message_id", id,
		"issues", len(result.Issues))
	return id, nil
}
