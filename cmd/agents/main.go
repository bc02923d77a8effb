package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/common/logger"
	"codesift.app/codesift/common/otel"
	"codesift.app/codesift/core/config"
	"codesift.app/codesift/core/db"
	"codesift.app/codesift/internal/agent"
	"codesift.app/codesift/internal/queue"
	"codesift.app/codesift/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeAgents)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "codesift agents worker starting",
		"env", cfg.Env,
		"stream", cfg.Bus.ResultsStream,
		"consumer_name", cfg.Bus.ConsumerName)

	// Use a different node ID than the server so IDs never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Bus.ResultsStream)

	producer := queue.NewRedisProducer(redisClient, nil)
	updates := store.NewAgentUpdateStore(database)

	agents := []agent.Agent{
		agent.NewDocAgent(cfg.Bus.DocAgentStream),
		agent.NewTestAgent(cfg.Bus.TestAgentStream),
		agent.NewQAAgent(cfg.Bus.QAAgentStream),
	}

	// Every agent gets its own consumer group on the results stream, so each
	// one sees every result and failures stay agent-local.
	var runners []*agent.Runner
	var reclaimers []*queue.RedisReclaimer
	errCh := make(chan error, len(agents)*2)

	for _, a := range agents {
		group := a.Name()

		consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
			Stream:       cfg.Bus.ResultsStream,
			Group:        group,
			Consumer:     cfg.Bus.ConsumerName,
			DLQStream:    cfg.Bus.DLQStream,
			BatchSize:    1, // Process one result at a time
			Block:        5 * time.Second,
			MaxAttempts:  3,
			RequeueDelay: time.Second,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create consumer", "error", err, "group", group)
			os.Exit(1)
		}

		runner := agent.NewRunner(a, consumer, producer, updates, agent.RunnerConfig{
			MaxAttempts: 3,
		})
		runners = append(runners, runner)

		reclaimer := queue.NewRedisReclaimer(redisClient, queue.ReclaimerConfig{
			Stream:    cfg.Bus.ResultsStream,
			Group:     group,
			Consumer:  cfg.Bus.ConsumerName + "-reclaimer",
			MinIdle:   5 * time.Minute,
			Interval:  1 * time.Minute,
			BatchSize: 10,
		}, consumer, runner.ProcessMessage)
		reclaimers = append(reclaimers, reclaimer)

		go func(r *agent.Runner) {
			errCh <- r.Run(ctx)
		}(runner)
		go func(rec *queue.RedisReclaimer) {
			rec.Run(ctx)
			errCh <- nil
		}(reclaimer)
	}

	slog.InfoContext(ctx, "agents initialized and running", "agents", len(agents))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down agents...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimers first (quick), then runners (may be mid-message).
	for _, rec := range reclaimers {
		rec.Stop()
	}
	for _, r := range runners {
		r.Stop()
	}

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "runner error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "agents shutdown complete")
}

const banner = `
 █████╗  ██████╗ ███████╗███╗   ██╗████████╗███████╗
██╔══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝██╔════╝
███████║██║  ███╗█████╗  ██╔██╗ ██║   ██║   ███████╗
██╔══██║██║   ██║██╔══╝  ██║╚██╗██║   ██║   ╚════██║
██║  ██║╚██████╔╝███████╗██║ ╚████║   ██║   ███████║
╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚══════╝
`
