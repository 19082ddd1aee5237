package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/creative-optimizer/internal/api"
	"github.com/ignite/creative-optimizer/internal/bootstrap"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/engine"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	"github.com/ignite/creative-optimizer/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

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
	logger.Info("policy loaded", "path", cfg.PolicyPath, "rules", len(policy.Rules))

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		fatal("pre-flight check failed", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		fatal("failed to initialize storage", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}
	db := bootstrap.OpenDB(ctx, cfg.Database.URL)
	if db != nil {
		defer db.Close()
	}
	briefs, err := bootstrap.BriefService(ctx, cfg, redisClient)
	if err != nil {
		fatal("failed to initialize brief generation", err)
	}

	server := api.NewServer(cfg.Server,
		api.NewHandlers(store, *policy, briefs),
		api.NewHealthChecker(store, db, redisClient))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	logger.Info("server stopped")
}
