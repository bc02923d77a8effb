package router

import (
	"github.com/gin-gonic/gin"

	"codesift.app/codesift/internal/http/handler"
)

func AnalysisRouter(router *gin.RouterGroup, handler *handler.AnalysisHandler) {
	router.POST("", handler.Analyze)
	router.GET("", handler.ListRuns)
	router.GET("/:id", handler.GetRun)
}
