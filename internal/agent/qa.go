package agent

import (
	"context"
	"fmt"
	"time"

	"codesift.app/codesift/internal/model"
)

// Release gate thresholds. A deployment is blocked by any critical issue and
// by more than two security findings; the quality gate wants the overall
// score at or above 70.
const (
	maxCriticalIssues = 0
	maxSecurityIssues = 2
	minQualityScore   = 70
)

// QAAgent re-derives the release verdict from the raw issue list instead of
// trusting the model's own deployment_ready flag.
type QAAgent struct {
	stream string
}

func NewQAAgent(stream string) *QAAgent {
	return &QAAgent{stream: stream}
}

func (a *QAAgent) Name() string {
	return "qa-agent"
}

func (a *QAAgent) Stream() string {
	return a.stream
}

func (a *QAAgent) Handle(ctx context.Context, result model.AnalysisResult) (model.AgentUpdate, error) {
	critical := result.CountBySeverity(model.SeverityCritical)
	high := result.CountBySeverity(model.SeverityHigh)
	security := result.CountByType(model.IssueTypeSecurity)

	deploymentReady := critical <= maxCriticalIssues && security <= maxSecurityIssues

	riskLevel := model.RiskMedium
	switch {
	case critical == 0:
		riskLevel = model.RiskLow
	case critical > 2:
		riskLevel = model.RiskHigh
	}

	gates := map[string]any{
		"no_critical_issues":      critical <= maxCriticalIssues,
		"security_threshold":      security <= maxSecurityIssues,
		"quality_score_threshold": result.RepositoryAnalysis.OverallScore >= minQualityScore,
	}

	return model.AgentUpdate{
		Agent:     a.Name(),
		Timestamp: time.Now().UTC(),
		RepoPath:  repoPathOf(result),
		Action:    "quality_assessment",
		Summary:   fmt.Sprintf("QA verdict: deployment_ready=%t risk=%s", deploymentReady, riskLevel),
		Details: map[string]any{
			"critical_issues":  critical,
			"high_issues":      high,
			"security_issues":  security,
			"deployment_ready": deploymentReady,
			"risk_level":       string(riskLevel),
			"quality_gates":    gates,
		},
	}, nil
}
