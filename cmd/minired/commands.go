package main

import (
	"github.com/spf13/cobra"

	"github.com/ha1tch/minired/pkg/config"
)

// --- Global Command Variables ---
var (
	cfg *config.Config

	// Flag targets; applied over env only when the flag was set
	flagStorage         string
	flagDBPath          string
	flagSnapshot        string
	flagCache           string
	flagDebug           bool
	flagHost            string
	flagPort            int
	flagStatements      string
	flagSeed            string
	flagContinueOnError bool
	flagEnvFile         string

	rootCmd = &cobra.Command{
		Use:   "minired",
		Short: "A small social graph of people, cities, hobbies and friendships",
		Long: `minired keeps people and their symmetric friendships in a memory,
SQLite or Neo4j store and suggests new friends by city or hobby.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Run the interactive console menu",
		Args:  cobra.NoArgs,
		RunE:  runShell,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Apply a statements file and/or a YAML seed, then exit",
		Args:  cobra.NoArgs,
		RunE:  runBootstrap,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file read before the environment")
	rootCmd.PersistentFlags().StringVar(&flagStorage, "storage", "", "store backend: memory, sqlite or neo4j")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "memory store snapshot file")
	rootCmd.PersistentFlags().StringVar(&flagCache, "cache", "", "result cache: memory, redis or none")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagStatements, "statements", "", "bootstrap statements file (';' separated)")
	rootCmd.PersistentFlags().StringVar(&flagSeed, "seed", "", "YAML seed file")
	rootCmd.PersistentFlags().BoolVar(&flagContinueOnError, "continue-on-error", false,
		"run every bootstrap statement even after a failure")

	rootCmd.AddCommand(shellCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagHost, "host", "", "listen host")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "listen port")

	rootCmd.AddCommand(bootstrapCmd)
}

// loadConfig layers defaults, the dotenv file, the environment and finally
// explicitly set flags
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(flagEnvFile); err != nil {
		return err
	}

	cfg = config.Default()
	config.LoadFromEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.StorageType = flagStorage
	}
	if flags.Changed("db-path") {
		cfg.DBPath = flagDBPath
	}
	if flags.Changed("snapshot") {
		cfg.SnapshotPath = flagSnapshot
	}
	if flags.Changed("cache") {
		cfg.CacheType = flagCache
	}
	if flags.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if flags.Changed("statements") {
		cfg.BootstrapPath = flagStatements
	}
	if flags.Changed("seed") {
		cfg.SeedPath = flagSeed
	}
	if flags.Changed("continue-on-error") {
		cfg.BootstrapContinueOnError = flagContinueOnError
	}
	if flags.Changed("host") {
		cfg.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	return nil
}
