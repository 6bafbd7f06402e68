package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// StoreFactory is a function that creates a new Store instance
type StoreFactory func(config map[string]interface{}) (Store, error)

var (
	storeMu       sync.RWMutex
	storeRegistry = make(map[string]StoreFactory)
)

// RegisterStore registers a new store implementation
func RegisterStore(name string, factory StoreFactory) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeRegistry[name] = factory
}

// NewStore creates a new store instance by name
func NewStore(name string, config map[string]interface{}) (Store, error) {
	storeMu.RLock()
	factory, exists := storeRegistry[name]
	storeMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown store type: %s", name)
	}

	return factory(config)
}

// ListStores returns all registered store types, sorted
func ListStores() []string {
	storeMu.RLock()
	defer storeMu.RUnlock()

	stores := make([]string, 0, len(storeRegistry))
	for name := range storeRegistry {
		stores = append(stores, name)
	}
	sort.Strings(stores)
	return stores
}

// init registers built-in stores
func init() {
	RegisterStore("memory", func(config map[string]interface{}) (Store, error) {
		snapshotPath, _ := config["snapshot_path"].(string)
		return NewMemoryStore(snapshotPath)
	})

	RegisterStore("sqlite", func(config map[string]interface{}) (Store, error) {
		dbPath, ok := config["db_path"].(string)
		if !ok {
			dbPath = "minired.db"
		}

		sqliteConfig := SQLiteConfig{
			DBPath:      dbPath,
			EnableWAL:   true,
			CacheSize:   2000, // 2MB
			BusyTimeout: 5000, // 5 seconds
		}

		// Allow overriding config options
		if wal, ok := config["enable_wal"].(bool); ok {
			sqliteConfig.EnableWAL = wal
		}
		if cache, ok := config["cache_size"].(int); ok {
			sqliteConfig.CacheSize = cache
		}
		if timeout, ok := config["busy_timeout"].(int); ok {
			sqliteConfig.BusyTimeout = timeout
		}

		return NewSQLiteStore(dbPath, sqliteConfig)
	})

	RegisterStore("neo4j", func(config map[string]interface{}) (Store, error) {
		cfg := Neo4jConfig{URI: "bolt://localhost:7687", Username: "neo4j"}
		if uri, ok := config["uri"].(string); ok && uri != "" {
			cfg.URI = uri
		}
		if user, ok := config["username"].(string); ok && user != "" {
			cfg.Username = user
		}
		cfg.Password, _ = config["password"].(string)
		cfg.Database, _ = config["database"].(string)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return NewNeo4jStore(ctx, cfg)
	})
}

// Describe returns the store's metadata, or a minimal record for stores
// that do not implement InfoProvider
func Describe(store Store) StoreInfo {
	if infoProvider, ok := store.(InfoProvider); ok {
		return infoProvider.Info()
	}
	return StoreInfo{Type: "unknown"}
}

// IsEmpty reports whether the store holds no people and no friendships
func IsEmpty(ctx context.Context, store Store) (bool, error) {
	people, err := store.CountPeople(ctx)
	if err != nil {
		return false, err
	}
	edges, err := store.CountFriendships(ctx)
	if err != nil {
		return false, err
	}
	return people == 0 && edges == 0, nil
}

// Copy transfers every person and friendship from src into dst. dst must be
// empty. It returns the number of people and friendships copied.
func Copy(ctx context.Context, src, dst Store) (int, int, error) {
	empty, err := IsEmpty(ctx, dst)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to inspect target: %w", err)
	}
	if !empty {
		return 0, 0, ErrNotEmpty
	}

	people, err := src.ListPeople(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list people: %w", err)
	}
	for _, p := range people {
		if _, err := dst.UpsertPerson(ctx, p); err != nil {
			return 0, 0, fmt.Errorf("failed to copy person %q: %w", p.Name, err)
		}
	}

	edges, err := src.ListFriendships(ctx)
	if err != nil {
		return len(people), 0, fmt.Errorf("failed to list friendships: %w", err)
	}

	copied := 0
	for _, e := range edges {
		created, err := dst.CreateFriendship(ctx, e.Left, e.Right)
		if err != nil {
			return len(people), copied, fmt.Errorf("failed to copy friendship %s-%s: %w", e.Left, e.Right, err)
		}
		if created {
			copied++
		}
	}

	return len(people), copied, nil
}
