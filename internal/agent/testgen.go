package agent

import (
	"context"
	"fmt"
	"time"

	"codesift.app/codesift/internal/model"
)

// coverageCatalogue maps issue types to the test work they imply. Fixed
// per-type guidance keeps the agent deterministic under redelivery.
var coverageCatalogue = map[model.IssueType]string{
	model.IssueTypeSecurity:    "Add negative-path tests covering the reported attack surface",
	model.IssueTypeQuality:     "Add unit tests around the flagged functions before refactoring",
	model.IssueTypePerformance: "Add benchmarks to pin current behavior before optimizing",
}

// TestAgent proposes test coverage work for the reported issues.
type TestAgent struct {
	stream string
}

func NewTestAgent(stream string) *TestAgent {
	return &TestAgent{stream: stream}
}

func (a *TestAgent) Name() string {
	return "test-agent"
}

func (a *TestAgent) Stream() string {
	return a.stream
}

func (a *TestAgent) Handle(ctx context.Context, result model.AnalysisResult) (model.AgentUpdate, error) {
	counts := result.IssueCountsByType()

	var proposals []string
	for _, issueType := range []model.IssueType{model.IssueTypeSecurity, model.IssueTypeQuality, model.IssueTypePerformance} {
		if counts[string(issueType)] > 0 {
			proposals = append(proposals, coverageCatalogue[issueType])
		}
	}

	return model.AgentUpdate{
		Agent:     a.Name(),
		Timestamp: time.Now().UTC(),
		RepoPath:  repoPathOf(result),
		Action:    "tests_proposed",
		Summary:   fmt.Sprintf("Proposed test coverage for %d issues", len(result.Issues)),
		Details: map[string]any{
			"issue_counts":       counts,
			"coverage_proposals": proposals,
		},
	}, nil
}
