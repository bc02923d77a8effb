package model

import "time"

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// AnalysisRun is the durable record of one pipeline invocation.
type AnalysisRun struct {
	ID            int64      `json:"id"`
	RepoPath      string     `json:"repo_path"`
	CommitHash    string     `json:"commit_hash"`
	AnalysisType  string     `json:"analysis_type"`
	Status        RunStatus  `json:"status"`
	FilesAnalyzed int        `json:"files_analyzed"`
	IssueCount    int        `json:"issue_count"`
	MessageID     *string    `json:"message_id,omitempty"`
	Error         *string    `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}
