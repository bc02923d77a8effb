package dto

import "codesift.app/codesift/internal/model"

// Request keys are camelCase while response keys are snake_case; both sides
// of the wire contract are fixed and they disagree on purpose.
type AnalyzeRequest struct {
	RepoPath     string `json:"repoPath" binding:"required"`
	CommitHash   string `json:"commitHash,omitempty"`
	AnalysisType string `json:"analysisType,omitempty"`
}

type AnalyzeResponse struct {
	Status             string                   `json:"status"`
	RunID              int64                    `json:"run_id"`
	RepositoryAnalysis model.RepositoryAnalysis `json:"repository_analysis"`
	Issues             []model.Issue            `json:"issues"`
	Recommendations    []string                 `json:"recommendations"`
	Summary            string                   `json:"summary"`
	Metadata           *model.Metadata          `json:"metadata,omitempty"`

	// MessageID is null when the result carried no issues (nothing was
	// published) or when publication failed.
	MessageID    *string `json:"message_id"`
	PublishError *string `json:"publish_error,omitempty"`
}

type RunResponse struct {
	Run model.AnalysisRun `json:"run"`
}

type RunListResponse struct {
	Runs []model.AnalysisRun `json:"runs"`
}
