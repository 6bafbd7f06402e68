package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const Version = "0.1.0"

// Config holds application configuration
type Config struct {
	// Server configuration
	Host        string
	Port        int
	CORSOrigins []string

	// Storage configuration
	StorageType  string // "memory", "sqlite" or "neo4j"
	DBPath       string // SQLite database path
	SnapshotPath string // memory store snapshot file, empty for none

	// Neo4j configuration
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Cache configuration
	CacheType string // "memory", "redis" or "none"
	CacheTTL  int    // seconds
	CacheSize int
	RedisHost string
	RedisPort int

	// Bootstrap configuration
	BootstrapPath            string
	SeedPath                 string
	BootstrapContinueOnError bool

	// Debug
	Debug bool
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Host:        "0.0.0.0",
		Port:        9090,
		CORSOrigins: []string{"*"},
		StorageType: "sqlite",
		DBPath:      "minired.db",
		Neo4jURI:    "bolt://localhost:7687",
		Neo4jUser:   "neo4j",
		CacheType:   "memory",
		CacheTTL:    300,
		CacheSize:   1024,
		RedisHost:   "localhost",
		RedisPort:   6379,
		Debug:       false,
	}
}

// CacheDuration returns CacheTTL as a time.Duration
func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// StoreConfig returns the storage registry settings for StorageType
func (c *Config) StoreConfig() map[string]interface{} {
	switch c.StorageType {
	case "sqlite":
		return map[string]interface{}{
			"db_path": c.DBPath,
		}
	case "neo4j":
		return map[string]interface{}{
			"uri":      c.Neo4jURI,
			"username": c.Neo4jUser,
			"password": c.Neo4jPassword,
			"database": c.Neo4jDatabase,
		}
	default:
		return map[string]interface{}{
			"snapshot_path": c.SnapshotPath,
		}
	}
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) into the process environment. Existing variables win. A
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if val := os.Getenv("HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		cfg.CORSOrigins = splitList(val)
	}
	if val := os.Getenv("STORAGE_TYPE"); val != "" {
		cfg.StorageType = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.DBPath = val
	}
	if val := os.Getenv("SNAPSHOT_PATH"); val != "" {
		cfg.SnapshotPath = val
	}
	if val := os.Getenv("NEO4J_URI"); val != "" {
		cfg.Neo4jURI = val
	}
	if val := os.Getenv("NEO4J_USER"); val != "" {
		cfg.Neo4jUser = val
	}
	if val := os.Getenv("NEO4J_PASSWORD"); val != "" {
		cfg.Neo4jPassword = val
	}
	if val := os.Getenv("NEO4J_DATABASE"); val != "" {
		cfg.Neo4jDatabase = val
	}
	if val := os.Getenv("CACHE_TYPE"); val != "" {
		cfg.CacheType = val
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil {
			cfg.CacheTTL = ttl
		}
	}
	if val := os.Getenv("CACHE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.CacheSize = size
		}
	}
	if val := os.Getenv("REDIS_HOST"); val != "" {
		cfg.RedisHost = val
	}
	if val := os.Getenv("REDIS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.RedisPort = port
		}
	}
	if val := os.Getenv("BOOTSTRAP_PATH"); val != "" {
		cfg.BootstrapPath = val
	}
	if val := os.Getenv("SEED_PATH"); val != "" {
		cfg.SeedPath = val
	}
	if val := os.Getenv("BOOTSTRAP_CONTINUE_ON_ERROR"); val != "" {
		cfg.BootstrapContinueOnError = parseBool(val)
	}
	if val := os.Getenv("DEBUG"); val != "" {
		cfg.Debug = parseBool(val)
	}
}

func parseBool(val string) bool {
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
