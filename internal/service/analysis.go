package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/internal/analysis"
	"codesift.app/codesift/internal/dispatch"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/snapshot"
	"codesift.app/codesift/internal/store"
)

// AnalyzeParams identify what to analyze.
type AnalyzeParams struct {
	RepoPath string
	Revision string
	Kind     string
}

// AnalyzeResult is the synchronous outcome of one pipeline run. PublishErr is
// set when the result could not reach the bus; the analysis itself still
// succeeded and Result is fully populated.
type AnalyzeResult struct {
	Run        *model.AnalysisRun
	Result     *model.AnalysisResult
	MessageID  string
	PublishErr error
}

// Fetcher produces a repository snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, repoRef, revision string) (snapshot.Snapshot, error)
}

// AnalysisService runs the full pipeline: collect, prompt, invoke, normalize,
// dispatch. One Analyze call is one run with a durable run record.
type AnalysisService struct {
	fetcher    Fetcher
	invoker    analysis.Invoker
	dispatcher *dispatch.Dispatcher
	runs       store.AnalysisRunStore
}

func NewAnalysisService(fetcher Fetcher, invoker analysis.Invoker, dispatcher *dispatch.Dispatcher, runs store.AnalysisRunStore) *AnalysisService {
	return &AnalysisService{
		fetcher:    fetcher,
		invoker:    invoker,
		dispatcher: dispatcher,
		runs:       runs,
	}
}

func (s *AnalysisService) Analyze(ctx context.Context, params AnalyzeParams) (*AnalyzeResult, error) {
	if params.Revision == "" {
		params.Revision = "HEAD"
	}
	if params.Kind == "" {
		params.Kind = "comprehensive"
	}

	run := &model.AnalysisRun{
		ID:           id.New(),
		RepoPath:     params.RepoPath,
		CommitHash:   params.Revision,
		AnalysisType: params.Kind,
		Status:       model.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     &run.ID,
		RepoPath:  &params.RepoPath,
		Component: "codesift.service.analysis",
	})

	sc := logger.StartSpan(ctx, "analysis.run", trace.WithSpanKind(trace.SpanKindServer))
	defer sc.End()
	ctx = sc.Context()

	s.createRun(ctx, run)

	slog.InfoContext(ctx, "analysis run started",
		"revision", params.Revision,
		"analysis_type", params.Kind)

	snap, err := s.fetcher.Fetch(ctx, params.RepoPath, params.Revision)
	if err != nil {
		sc.RecordError(err)
		s.finishRun(ctx, run, model.RunStatusFailed, err)
		return nil, err
	}
	run.FilesAnalyzed = snap.Len()

	prompt := analysis.BuildPrompt(snap)

	raw, err := s.invoker.Invoke(ctx, prompt)
	if err != nil {
		sc.RecordError(err)
		s.finishRun(ctx, run, model.RunStatusFailed, err)
		return nil, err
	}

	result := analysis.Normalize(raw, snap)

	messageID, err := s.dispatcher.Dispatch(ctx, &result, dispatch.RunMeta{
		RunID:    run.ID,
		RepoPath: params.RepoPath,
		Revision: params.Revision,
		Kind:     params.Kind,
		AIModel:  s.invoker.Model(),
	})

	var publishErr error
	if err != nil {
		// The analysis is done, losing the bus doesn't undo it. Report the
		// publish failure alongside the result.
		sc.RecordError(err)
		slog.ErrorContext(ctx, "dispatch failed, returning result anyway", "error", err)
		publishErr = err
	}

	run.IssueCount = len(result.Issues)
	if messageID != "" {
		run.MessageID = &messageID
	}
	s.finishRun(ctx, run, model.RunStatusSucceeded, publishErr)

	slog.InfoContext(ctx, "analysis run finished",
		"files", run.FilesAnalyzed,
		"issues", run.IssueCount,
		"published", messageID != "")

	return &AnalyzeResult{
		Run:        run,
		Result:     &result,
		MessageID:  messageID,
		PublishErr: publishErr,
	}, nil
}

// createRun and finishRun keep bookkeeping failures out of the request path:
// a run history miss is logged, never surfaced.
func (s *AnalysisService) createRun(ctx context.Context, run *model.AnalysisRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Create(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to record analysis run", "error", err)
	}
}

func (s *AnalysisService) finishRun(ctx context.Context, run *model.AnalysisRun, status model.RunStatus, cause error) {
	run.Status = status
	now := time.Now().UTC()
	run.FinishedAt = &now
	if cause != nil {
		run.Error = logger.Ptr(cause.Error())
	}

	if s.runs == nil {
		return
	}
	if err := s.runs.Finish(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to finish analysis run record", "error", err)
	}
}
