package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/minired/pkg/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StorageType)
	assert.Equal(t, "memory", cfg.CacheType)
	assert.Equal(t, 5*time.Minute, cfg.CacheDuration())
	assert.False(t, cfg.BootstrapContinueOnError)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("STORAGE_TYPE", "neo4j")
	t.Setenv("NEO4J_URI", "neo4j://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("CACHE_TYPE", "none")
	t.Setenv("CACHE_SIZE", "not-a-number")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("BOOTSTRAP_PATH", "init.cypher")
	t.Setenv("BOOTSTRAP_CONTINUE_ON_ERROR", "yes")
	t.Setenv("DEBUG", "1")

	cfg := config.Default()
	config.LoadFromEnv(cfg)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "neo4j", cfg.StorageType)
	assert.Equal(t, "none", cfg.CacheType)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "init.cypher", cfg.BootstrapPath)
	assert.True(t, cfg.BootstrapContinueOnError)
	assert.True(t, cfg.Debug)

	assert.Equal(t, map[string]interface{}{
		"uri":      "neo4j://graph:7687",
		"username": "neo4j",
		"password": "secret",
		"database": "",
	}, cfg.StoreConfig())
}

func TestStoreConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, map[string]interface{}{"db_path": "minired.db"}, cfg.StoreConfig())

	cfg.StorageType = "memory"
	cfg.SnapshotPath = "graph.json"
	assert.Equal(t, map[string]interface{}{"snapshot_path": "graph.json"}, cfg.StoreConfig())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MINIRED_TEST_DOTENV=from-file\nMINIRED_TEST_KEEP=from-file\n"), 0644))

	t.Setenv("MINIRED_TEST_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("MINIRED_TEST_DOTENV") })

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("MINIRED_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("MINIRED_TEST_KEEP"))

	assert.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}
