package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/internal/analysis"
	"codesift.app/codesift/internal/http/dto"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/service"
	"codesift.app/codesift/internal/snapshot"
	"codesift.app/codesift/internal/store"
)

type AnalysisHandler struct {
	service *service.AnalysisService
	runs    store.AnalysisRunStore
}

func NewAnalysisHandler(service *service.AnalysisService, runs store.AnalysisRunStore) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		runs:    runs,
	}
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid analyze request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Analyze(ctx, service.AnalyzeParams{
		RepoPath: req.RepoPath,
		Revision: req.CommitHash,
		Kind:     req.AnalysisType,
	})
	if err != nil {
		// An unreachable repository or bad revision is the caller's problem;
		// everything past the fetch is ours.
		if snapshot.IsFetchError(err) {
			slog.WarnContext(ctx, "repository fetch failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if analysis.IsInvocationError(err) {
			slog.ErrorContext(ctx, "analysis invocation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis invocation failed"})
			return
		}
		slog.ErrorContext(ctx, "analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	resp := dto.AnalyzeResponse{
		Status:             "success",
		RunID:              result.Run.ID,
		RepositoryAnalysis: result.Result.RepositoryAnalysis,
		Issues:             result.Result.Issues,
		Recommendations:    result.Result.Recommendations,
		Summary:            result.Result.Summary,
		Metadata:           result.Result.Metadata,
	}
	if result.MessageID != "" {
		resp.MessageID = logger.Ptr(result.MessageID)
	}
	if result.PublishErr != nil {
		resp.PublishError = logger.Ptr(result.PublishErr.Error())
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AnalysisHandler) GetRun(c *gin.Context) {
	ctx := c.Request.Context()

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, dto.RunResponse{Run: *run})
}

func (h *AnalysisHandler) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int32(50)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(parsed)
	}

	runs, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []model.AnalysisRun{}
	}

	c.JSON(http.StatusOK, dto.RunListResponse{Runs: runs})
}
