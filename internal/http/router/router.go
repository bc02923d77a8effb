package router

import (
	"github.com/gin-gonic/gin"

	"codesift.app/codesift/internal/http/handler"
)

type Handlers struct {
	Analysis *handler.AnalysisHandler
	Health   *handler.HealthHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.Health)

	v1 := router.Group("/api/v1")
	{
		AnalysisRouter(v1.Group("/analyses"), h.Analysis)
	}
}
