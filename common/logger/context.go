package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so business context
// (run_id, repo_path, agent, etc.) appears in every log statement without
// being threaded by hand.
type LogFields struct {
	RunID     *int64  // Analysis run ID
	RepoPath  *string // Repository under analysis
	MessageID *string // Redis stream message ID
	Agent     *string // Consumer agent name ("doc", "test", "qa")
	Stream    *string // Stream the message came from or goes to
	Component string  // Component name (OTel semantic convention style, e.g. "codesift.agent.runner")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.RepoPath != nil {
		result.RepoPath = next.RepoPath
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Agent != nil {
		result.Agent = next.Agent
	}
	if next.Stream != nil {
		result.Stream = next.Stream
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long strings like prompts or raw
// model responses.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
