package model

import "time"

// AgentUpdate is the narrow summary a consumer agent derives from one
// AnalysisResult and republishes on its own stream. Updates have independent
// lifecycles per agent and are never folded back into the AnalysisResult.
type AgentUpdate struct {
	Agent     string         `json:"agent"`
	Timestamp time.Time      `json:"timestamp"`
	RepoPath  string         `json:"repo_path"`
	Action    string         `json:"action"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details,omitempty"`
}
