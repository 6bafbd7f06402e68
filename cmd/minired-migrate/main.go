package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ha1tch/minired/pkg/config"
	"github.com/ha1tch/minired/pkg/storage"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: minired-migrate <source> <target>")
		fmt.Println("  where <source> and <target> are backend:location")
		fmt.Println("Example: minired-migrate memory:./snapshot.json sqlite:./minired.db")
		fmt.Println("         minired-migrate sqlite:./minired.db neo4j:bolt://localhost:7687")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	if err := migrate(context.Background(), os.Args[1], os.Args[2]); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Migration completed successfully!")
}

// storeConfig turns "backend:location" into a config; Neo4j credentials
// come from the environment
func storeConfig(endpoint string) (*config.Config, error) {
	backend, location, _ := strings.Cut(endpoint, ":")

	cfg := config.Default()
	config.LoadFromEnv(cfg)
	cfg.StorageType = backend

	switch backend {
	case "memory":
		cfg.SnapshotPath = location
	case "sqlite":
		if location == "" {
			return nil, fmt.Errorf("sqlite needs a database path: %s", endpoint)
		}
		cfg.DBPath = location
	case "neo4j":
		if location != "" {
			cfg.Neo4jURI = location
		}
	default:
		return nil, fmt.Errorf("unknown backend %q (available: %s)", backend, strings.Join(storage.ListStores(), ", "))
	}
	return cfg, nil
}

func open(endpoint string) (storage.Store, error) {
	cfg, err := storeConfig(endpoint)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(cfg.StorageType, cfg.StoreConfig())
}

func migrate(ctx context.Context, source, target string) error {
	fmt.Printf("Opening source (%s)...\n", source)
	sourceStore, err := open(source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer sourceStore.Close()

	fmt.Printf("Opening target (%s)...\n", target)
	targetStore, err := open(target)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer targetStore.Close()

	fmt.Println("Copying people and friendships...")
	people, edges, err := storage.Copy(ctx, sourceStore, targetStore)
	if err != nil {
		if errors.Is(err, storage.ErrNotEmpty) {
			return fmt.Errorf("target already holds data: %s (empty it first)", target)
		}
		return err
	}

	fmt.Printf("\nMigration summary:\n")
	fmt.Printf("  Total people: %d\n", people)
	fmt.Printf("  Total friendships: %d\n", edges)

	fmt.Println("\nVerifying counts...")
	gotPeople, err := targetStore.CountPeople(ctx)
	if err != nil {
		return fmt.Errorf("failed to count target people: %w", err)
	}
	gotEdges, err := targetStore.CountFriendships(ctx)
	if err != nil {
		return fmt.Errorf("failed to count target friendships: %w", err)
	}
	if gotPeople != people || gotEdges != edges {
		return fmt.Errorf("count mismatch: target has %d people and %d friendships", gotPeople, gotEdges)
	}
	fmt.Println("  Counts verified")

	fmt.Println("\nVerifying friendships...")
	sourceEdges, err := sourceStore.ListFriendships(ctx)
	if err != nil {
		return fmt.Errorf("failed to list source friendships: %w", err)
	}
	for _, e := range sourceEdges {
		ok, err := targetStore.AreFriends(ctx, e.Right, e.Left)
		if err != nil {
			return fmt.Errorf("failed to check friendship %s-%s: %w", e.Left, e.Right, err)
		}
		if !ok {
			return fmt.Errorf("friendship %s-%s missing from target", e.Left, e.Right)
		}
	}
	fmt.Println("  Friendships verified")

	return nil
}
