package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"codesift.app/codesift/core/config"
)

const serviceVersion = "1.0.0"

type HealthHandler struct {
	cfg   config.Config
	redis *redis.Client
}

func NewHealthHandler(cfg config.Config, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		cfg:   cfg,
		redis: redisClient,
	}
}

// Health reports capability status. The LLM check is configuration-level
// only: probing the inference endpoint on every health poll would burn quota.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	llmOK := h.cfg.LLM.APIKey != "" && h.cfg.LLM.Model != ""

	busOK := false
	if h.redis != nil {
		busOK = h.redis.Ping(ctx).Err() == nil
	}

	status := "healthy"
	code := http.StatusOK
	if !llmOK || !busOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":          status,
		"llm":             llmOK,
		"bus":             busOK,
		"project_id":      h.cfg.ProjectID,
		"region":          h.cfg.Region,
		"model":           h.cfg.LLM.Model,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"service_version": serviceVersion,
	})
}
