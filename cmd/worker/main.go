package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/creative-optimizer/internal/bootstrap"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	"github.com/ignite/creative-optimizer/internal/source"
	"github.com/ignite/creative-optimizer/internal/storage"
	"github.com/ignite/creative-optimizer/internal/worker"
)

func fatal(msg string, err error) {
	logger.Error(msg, "error", err.Error())
	os.Exit(1)
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	policy, err := engine.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		fatal("failed to load policy", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		fatal("failed to initialize storage", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources, closeSources, err := source.FromConfig(ctx, cfg)
	if err != nil {
		fatal("failed to configure sources", err)
	}
	defer closeSources()
	if len(sources) == 0 {
		logger.Warn("no sources enabled; cycles will be empty")
	}

	runner := worker.NewCycleRunner(cfg.Analysis, *policy, sources, store)
	redisClient := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
		runner.SetRedisClient(redisClient)
	}
	if cfg.Analysis.GenerateBriefs {
		briefs, err := bootstrap.BriefService(ctx, cfg, redisClient)
		if err != nil {
			fatal("failed to initialize brief generation", err)
		}
		runner.SetBriefService(briefs)
	}
	if db := bootstrap.OpenDB(ctx, cfg.Database.URL); db != nil {
		defer db.Close()
		runner.SetDB(db)
	}

	if err := runner.Start(); err != nil {
		fatal("failed to start cycle runner", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("shutting down worker")
	runner.Stop()
}
