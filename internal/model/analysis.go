package model

import "time"

// IssueType classifies what an issue is about.
type IssueType string

const (
	IssueTypeSecurity    IssueType = "security"
	IssueTypeQuality     IssueType = "quality"
	IssueTypePerformance IssueType = "performance"
)

// Severity ranks how urgent an issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// RiskLevel is the repository-wide risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Issue is a single finding reported by the model (or synthesized by the
// normalizer's fallback path). Immutable after creation.
type Issue struct {
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	File       string    `json:"file"`
	Line       int       `json:"line"`
	Message    string    `json:"message"`
	Rule       string    `json:"rule"`
	Suggestion string    `json:"suggestion"`
	Confidence float64   `json:"confidence"`
}

// RepositoryAnalysis summarizes the whole repository.
type RepositoryAnalysis struct {
	OverallScore    float64   `json:"overall_score"`
	TotalFiles      int       `json:"total_files"`
	RiskLevel       RiskLevel `json:"risk_level"`
	DeploymentReady bool      `json:"deployment_ready"`
}

// FileMetrics holds per-file scores from the model.
type FileMetrics struct {
	QualityScore    float64 `json:"quality_score"`
	Complexity      float64 `json:"complexity"`
	Maintainability float64 `json:"maintainability"`
	SecurityScore   float64 `json:"security_score"`
}

// Metadata is attached by the dispatcher before publication.
type Metadata struct {
	RepoPath      string    `json:"repo_path"`
	CommitHash    string    `json:"commit_hash"`
	AnalysisType  string    `json:"analysis_type"`
	Timestamp     time.Time `json:"timestamp"`
	FilesAnalyzed int       `json:"files_analyzed"`
	AIModel       string    `json:"ai_model"`
}

// AnalysisResult is the shared payload flowing from the normalizer through
// the dispatcher to every consumer agent. Treated as an immutable value once
// the dispatcher has attached metadata.
type AnalysisResult struct {
	RepositoryAnalysis RepositoryAnalysis     `json:"repository_analysis"`
	Issues             []Issue                `json:"issues"`
	FileMetrics        map[string]FileMetrics `json:"file_metrics,omitempty"`
	Recommendations    []string               `json:"recommendations"`
	Summary            string                 `json:"summary"`

	// RawResponse preserves the unparseable model output on the fallback
	// path so the original text stays available for diagnosis.
	RawResponse string `json:"raw_response,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// CountBySeverity returns how many issues carry the given severity.
func (r AnalysisResult) CountBySeverity(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// CountByType returns how many issues carry the given type.
func (r AnalysisResult) CountByType(t IssueType) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Type == t {
			n++
		}
	}
	return n
}

// IssueCountsByType returns the per-type issue breakdown keyed by type name.
func (r AnalysisResult) IssueCountsByType() map[string]int {
	counts := map[string]int{
		string(IssueTypeSecurity):    0,
		string(IssueTypeQuality):     0,
		string(IssueTypePerformance): 0,
	}
	for _, issue := range r.Issues {
		counts[string(issue.Type)]++
	}
	return counts
}
