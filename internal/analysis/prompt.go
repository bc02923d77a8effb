package analysis

import (
	"fmt"
	"strings"

	"codesift.app/codesift/internal/snapshot"
)

// BuildPrompt serializes a snapshot into a single analysis request. The
// required response schema is spelled out inside the instructions so the
// model's output is structurally self-describing. Output is deterministic
// for a given snapshot: files are emitted in sorted path order.
//
// No truncation happens here. Callers that need to bound prompt size must
// pre-filter the snapshot before building.
func BuildPrompt(snap snapshot.Snapshot) string {
	var files strings.Builder
	for _, path := range snap.Paths() {
		fmt.Fprintf(&files, "\n--- FILE: %s ---\n%s\n", path, snap[path])
	}

	return fmt.Sprintf(`Please analyze the following codebase for security, quality, and performance issues.
Return your findings as a valid JSON object with this structure:

{
    "repository_analysis": {
        "overall_score": <number 0-100>,
        "total_files": %d,
        "risk_level": "<low|medium|high|critical>",
        "deployment_ready": <boolean>
    },
    "issues": [
        {
            "type": "<security|quality|performance>",
            "severity": "<critical|high|medium|low>",
            "file": "<file_path>",
            "line": <line_number>,
            "message": "<description>",
            "rule": "<rule_id>",
            "suggestion": "<fix_suggestion>",
            "confidence": <0.0-1.0>
        }
    ],
    "file_metrics": {
        "<file_path>": {
            "quality_score": <0-100>,
            "complexity": <number>,
            "maintainability": <number>,
            "security_score": <0-100>
        }
    },
    "recommendations": [
        "<recommendation_1>",
        "<recommendation_2>"
    ],
    "summary": "<overall_analysis_summary>"
}

Focus on:
1. Security vulnerabilities (SQL injection, XSS, hardcoded secrets, etc.)
2. Code quality issues (complexity, maintainability, best practices)
3. Performance bottlenecks and optimization opportunities
4. Architecture and design patterns
5. Testing and documentation gaps

Codebase to analyze:
%s`, snap.Len(), files.String())
}
