package agent

import (
	"context"
	"fmt"
	"time"

	"codesift.app/codesift/internal/model"
)

// DocAgent turns findings into documentation work items: a per-type issue
// breakdown plus the analyzer's own recommendations, ready for a docs
// backlog.
type DocAgent struct {
	stream string
}

func NewDocAgent(stream string) *DocAgent {
	return &DocAgent{stream: stream}
}

func (a *DocAgent) Name() string {
	return "doc-agent"
}

func (a *DocAgent) Stream() string {
	return a.stream
}

func (a *DocAgent) Handle(ctx context.Context, result model.AnalysisResult) (model.AgentUpdate, error) {
	counts := result.IssueCountsByType()

	return model.AgentUpdate{
		Agent:     a.Name(),
		Timestamp: time.Now().UTC(),
		RepoPath:  repoPathOf(result),
		Action:    "documentation_generated",
		Summary:   fmt.Sprintf("Generated documentation for %d issues", len(result.Issues)),
		Details: map[string]any{
			"issue_counts":     counts,
			"recommendations":  result.Recommendations,
			"analysis_summary": result.Summary,
		},
	}, nil
}
