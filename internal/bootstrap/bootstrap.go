// Package bootstrap opens the shared backends used by the server and the
// worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/creative-optimizer/internal/briefgen"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis. An empty URL or a failed ping returns nil so
// callers fall back to the next lock backend.
func OpenRedis(ctx context.Context, redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	var client *redis.Client
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, falling back", "error", err.Error())
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}

// OpenDB connects to PostgreSQL. An empty URL or a failed ping returns nil.
func OpenDB(ctx context.Context, dbURL string) *sql.DB {
	if dbURL == "" {
		return nil
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Warn("database unavailable", "error", err.Error())
		return nil
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database unavailable", "error", err.Error())
		db.Close()
		return nil
	}
	logger.Info("database connected")
	return db
}

// BriefService builds the brief generator when enabled. The cache is used
// only when Redis is available.
func BriefService(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*briefgen.Service, error) {
	if !cfg.Bedrock.Enabled {
		return nil, nil
	}
	prompts, err := briefgen.NewPromptBuilder("")
	if err != nil {
		return nil, err
	}
	gen, err := briefgen.NewBedrockGenerator(ctx, cfg.Bedrock, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}
	var cache *briefgen.Cache
	if redisClient != nil {
		cache = briefgen.NewCache(redisClient, cfg.Bedrock.CacheTTL())
	}
	return briefgen.NewService(prompts, gen, cache), nil
}
