package internal

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-catalog/internal/adapters/filestorage"
	"ollama-catalog/internal/adapters/memory"
	"ollama-catalog/internal/adapters/null"
	"ollama-catalog/internal/adapters/redisstore"
	"ollama-catalog/internal/configs"
)

func testConfig(kind string) *configs.AppConfig {
	return &configs.AppConfig{
		Catalog: configs.CatalogConfig{
			BaseURL:        "http://127.0.0.1:1",
			RequestTimeout: time.Second,
			Name:           "test_catalog",
		},
		Store: configs.StoreConfig{Kind: kind},
		Redis: configs.RedisConfig{Prefix: "catalog"},
		HTTP:  configs.HTTPConfig{Addr: "127.0.0.1:0"},
	}
}

func TestStoreKinds(t *testing.T) {
	assert.Equal(t, []string{"file", "memory", "null", "postgres", "redis"}, StoreKinds())
}

func TestNewApp_SelectsStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		kind string
		cfg  func(*configs.AppConfig)
		want any
	}{
		{kind: "memory", want: &memory.CatalogMemoryStorage{}},
		{kind: "null", want: &null.CatalogNullStorage{}},
		{kind: "file", cfg: func(c *configs.AppConfig) { c.Store.File = filepath.Join(t.TempDir(), "catalog.yaml") }, want: &filestorage.CatalogFileStorage{}},
		{kind: "redis", cfg: func(c *configs.AppConfig) { c.Redis.Addr = mr.Addr() }, want: &redisstore.CatalogRedisStorage{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := testConfig(tt.kind)
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			app, err := NewApp(context.Background(), cfg, true)
			require.NoError(t, err)
			defer app.Close()

			assert.IsType(t, tt.want, app.store.storage)
			assert.NotNil(t, app.Cache)
			assert.NotNil(t, app.Sweeps)
			assert.Nil(t, app.sweepListener)
		})
	}
}

func TestNewApp_UnknownStore(t *testing.T) {
	_, err := NewApp(context.Background(), testConfig("sqlite"), false)
	assert.ErrorContains(t, err, "unknown CATALOG_STORE")
}

func TestNewApp_BadBaseURL(t *testing.T) {
	cfg := testConfig("memory")
	cfg.Catalog.BaseURL = "ollama.com"
	_, err := NewApp(context.Background(), cfg, false)
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig("memory")
	cfg.HTTP.Addr = addr
	app, err := NewApp(context.Background(), cfg, true)
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/catalog")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
