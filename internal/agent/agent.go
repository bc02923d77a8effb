package agent

import (
	"context"

	"codesift.app/codesift/internal/model"
)

// Agent consumes analysis results and derives a narrow, agent-specific
// update. Handle must be a pure function of the result: agents share a
// stream with at-least-once delivery, so redelivered results must produce
// equivalent updates.
type Agent interface {
	// Name identifies the agent in logs and update payloads.
	Name() string
	// Stream is the agent's own output stream for AgentUpdates.
	Stream() string
	// Handle derives the agent's update from one analysis result.
	Handle(ctx context.Context, result model.AnalysisResult) (model.AgentUpdate, error)
}

func repoPathOf(result model.AnalysisResult) string {
	if result.Metadata != nil {
		return result.Metadata.RepoPath
	}
	return "unknown"
}
