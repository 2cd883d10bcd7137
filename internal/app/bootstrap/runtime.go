package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildStorePool creates the pgx pool for the store. Connections are opened on first
// use, so placeholder configuration starts cleanly and fails per call.
func BuildStorePool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.StoreConfigured() {
		logger.Warn("store connection not configured; using placeholder, all store calls will fail")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.StoreDSN())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse store url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create store pool: %w", err)
	}
	return pool, nil
}

// BuildAnalysisListener wires the LISTEN/NOTIFY subscription for inserted analyses.
// Redeliveries are filtered through Redis when a client is available.
func BuildAnalysisListener(cfg *appconfig.Config, loader analyses.Loader, redisClient *redis.Client, logger *logging.Logger) *analyses.Listener {
	if cfg == nil || loader == nil {
		return nil
	}
	listener := analyses.NewListener(cfg.StoreDSN(), cfg.AnalysesChannel, loader, logger)
	if dedup := analyses.NewRedisDeduper(redisClient, cfg.NotificationDedup); dedup != nil {
		listener.WithDeduper(dedup)
	}
	return listener
}
