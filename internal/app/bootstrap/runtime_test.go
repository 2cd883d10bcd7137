package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type nopLoader struct{}

func (nopLoader) GetByID(context.Context, string) (*analyses.Analysis, error) {
	return nil, analyses.ErrAnalysisNotFound
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, logging.New("error"), true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true)
	require.NotNil(t, client)
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.New("error"), true))
}

func TestBuildStorePoolWithPlaceholderIsLazy(t *testing.T) {
	t.Setenv("STORE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_ACCESS_KEY", "")
	cfg := appconfig.Load()
	require.False(t, cfg.StoreConfigured())

	pool, err := BuildStorePool(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.Error(t, pool.Ping(ctx))
}

func TestBuildStorePoolRejectsBadURL(t *testing.T) {
	_, err := BuildStorePool(context.Background(), &appconfig.Config{StoreURL: "postgres://%zz"}, logging.New("error"))
	assert.Error(t, err)

	_, err = BuildStorePool(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestBuildAnalysisListener(t *testing.T) {
	cfg := &appconfig.Config{
		StoreURL:          appconfig.PlaceholderStoreURL,
		StoreAccessKey:    appconfig.PlaceholderStoreAccessKey,
		AnalysesChannel:   "ai_analyses_realtime",
		NotificationDedup: time.Minute,
	}
	assert.NotNil(t, BuildAnalysisListener(cfg, nopLoader{}, nil, logging.New("error")))
	assert.Nil(t, BuildAnalysisListener(cfg, nil, nil, logging.New("error")))
	assert.Nil(t, BuildAnalysisListener(nil, nopLoader{}, nil, logging.New("error")))
}
