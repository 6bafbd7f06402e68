package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ha1tch/minired/pkg/bootstrap"
	"github.com/ha1tch/minired/pkg/config"
	"github.com/ha1tch/minired/pkg/server"
	"github.com/ha1tch/minired/pkg/shell"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runShell drives the console menu on stdin/stdout; logs go to stderr so
// they never interleave with the menu
func runShell(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(os.Stderr, cfg.Debug)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.bootstrap(ctx); err != nil {
		logger.Error().Err(err).Msg("Bootstrap failed")
		return err
	}

	return shell.New(a.service, os.Stdin, os.Stdout, logger).Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(os.Stdout, cfg.Debug)
	printBanner(cfg)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if report, err := a.bootstrap(ctx); err != nil {
		logger.Error().Err(err).Msg("Bootstrap failed")
		return err
	} else if report != (bootstrap.Report{}) {
		logger.Info().Interface("report", report).Msg("Bootstrap applied")
	}

	srv := server.New(cfg, a.service, a.metrics, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msg("Server ready to accept requests")
		return srv.Start()
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Server failed")
		return err
	}
	return nil
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	if cfg.BootstrapPath == "" && cfg.SeedPath == "" {
		return fmt.Errorf("nothing to apply: set --statements and/or --seed")
	}

	logger := newLogger(os.Stderr, cfg.Debug)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.bootstrap(cmd.Context())

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	return err
}

func printBanner(cfg *config.Config) {
	lightBlue := "\033[1;36m"
	reset := "\033[0m"

	fmt.Print(lightBlue)
	fmt.Println("//////////////////////////////////////////////")
	fmt.Println("//..........................................//")
	fmt.Println("//....m.i.n.i.....r.e.d.....................//")
	fmt.Println("//..........................................//")
	fmt.Println("//......(o)-----(o)-----(o).................//")
	fmt.Println("//.......|.......|.......|..................//")
	fmt.Println("//......(o)-----(o).....(o).................//")
	fmt.Println("//..........................................//")
	fmt.Println("//////////////////////////////////////////////")
	fmt.Print(reset)

	fmt.Println()
	fmt.Println("//////////////////////////// minired " + config.Version + " /////////////////////////")
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println("Server Configuration:")
	fmt.Printf("  Host: %s\n", cfg.Host)
	fmt.Printf("  Port: %d\n", cfg.Port)
	fmt.Println()
	fmt.Println("Storage Configuration:")
	fmt.Printf("  Type: %s\n", cfg.StorageType)
	switch cfg.StorageType {
	case "sqlite":
		fmt.Printf("  Database: %s\n", cfg.DBPath)
	case "neo4j":
		fmt.Printf("  URI: %s\n", cfg.Neo4jURI)
	case "memory":
		if cfg.SnapshotPath != "" {
			fmt.Printf("  Snapshot: %s\n", cfg.SnapshotPath)
		}
	}
	fmt.Println()
	fmt.Println("Cache Configuration:")
	fmt.Printf("  Type: %s\n", cfg.CacheType)
	fmt.Printf("  TTL: %d seconds\n", cfg.CacheTTL)
	if cfg.CacheType == "redis" {
		fmt.Printf("  Redis: %s:%d\n", cfg.RedisHost, cfg.RedisPort)
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println()
}
