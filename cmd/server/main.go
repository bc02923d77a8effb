package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/common/otel"
	"codesift.app/codesift/core/config"
	"codesift.app/codesift/core/db"
	"codesift.app/codesift/internal/analysis"
	"codesift.app/codesift/internal/dispatch"
	"codesift.app/codesift/internal/http/handler"
	"codesift.app/codesift/internal/http/middleware"
	httprouter "codesift.app/codesift/internal/http/router"
	"codesift.app/codesift/internal/queue"
	"codesift.app/codesift/internal/service"
	"codesift.app/codesift/internal/snapshot"
	"codesift.app/codesift/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "codesift server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Bus.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Bus.ResultsStream)

	producer := queue.NewRedisProducer(redisClient, nil)
	defer producer.Close()

	invoker, err := analysis.NewInvoker(analysis.InvokerConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		MaxOutputTokens: cfg.Analysis.MaxOutputTokens,
		Temperature:     cfg.Analysis.Temperature,
		TopP:            cfg.Analysis.TopP,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create invoker", "error", err)
		os.Exit(1)
	}

	runs := store.NewAnalysisRunStore(database)
	dispatcher := dispatch.New(producer, cfg.Bus.ResultsStream)
	analysisService := service.NewAnalysisService(
		snapshot.NewCollector(nil),
		invoker,
		dispatcher,
		runs,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, analysisService, runs, redisClient)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Analysis runs synchronously inside the request, so the write
		// timeout must cover a full collect + invoke cycle.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, analysisService *service.AnalysisService, runs store.AnalysisRunStore, redisClient *redis.Client) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, httprouter.Handlers{
		Analysis: handler.NewAnalysisHandler(analysisService, runs),
		Health:   handler.NewHealthHandler(cfg, redisClient),
	})

	return router
}

const banner = `
 ██████╗ ██████╗ ██████╗ ███████╗███████╗██╗███████╗████████╗
██╔════╝██╔═══██╗██╔══██╗██╔════╝██╔════╝██║██╔════╝╚══██╔══╝
██║     ██║   ██║██║  ██║█████╗  ███████╗██║█████╗     ██║
██║     ██║   ██║██║  ██║██╔══╝  ╚════██║██║██╔══╝     ██║
╚██████╗╚██████╔╝██████╔╝███████╗███████║██║██║        ██║
 ╚═════╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝╚═╝        ╚═╝
`
