package store

import (
	"context"
	"errors"

	"codesift.app/codesift/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// AnalysisRunStore persists the lifecycle of analysis runs. The server
// creates a row per request and finishes it on every exit path.
type AnalysisRunStore interface {
	Create(ctx context.Context, run *model.AnalysisRun) error
	Finish(ctx context.Context, run *model.AnalysisRun) error
	GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error)
	ListRecent(ctx context.Context, limit int32) ([]model.AnalysisRun, error)
}

// AgentUpdateStore records agent updates after they are published, keyed by
// the run they were derived from.
type AgentUpdateStore interface {
	Create(ctx context.Context, runID int64, messageID string, update model.AgentUpdate) error
	ListByRun(ctx context.Context, runID int64) ([]model.AgentUpdate, error)
}
