// Package cli implements the threadview command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/config"
	"github.com/tOgg1/threadview/internal/db"
	"github.com/tOgg1/threadview/internal/logging"
)

var (
	cfgFile     string
	dbPath      string
	logLevel    string
	logFormat   string
	jsonOutput  bool
	jsonlOutput bool
	verbose     bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "threadview",
	Short: "Windowed, incrementally updated conversation viewer",
	Long: `threadview keeps a scrollable window over a conversation stored in SQLite
and applies every change to it as a serialized sequence of render updates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/threadview/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path override")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	rootCmd.PersistentFlags().BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	if dbPath != "" {
		loader.Set("database.path", dbPath)
	}
	if logLevel != "" {
		loader.Set("logging.level", logLevel)
	}
	if logFormat != "" {
		loader.Set("logging.format", logFormat)
	}
	if verbose {
		loader.Set("logging.level", "debug")
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.EnableCaller = cfg.Logging.EnableCaller
	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.Output = file
	}
	logging.Init(logCfg)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		logging.Logger.Debug().Str("file", used).Msg("loaded config")
	}

	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

func IsJSONOutput() bool  { return jsonOutput }
func IsJSONLOutput() bool { return jsonlOutput }
func IsVerbose() bool     { return verbose }

// openDatabase opens and migrates the configured database.
func openDatabase(ctx context.Context) (*db.DB, error) {
	cfg := GetConfig()
	path := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := db.Open(db.Config{
		Path:           path,
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeoutMs:  cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, err
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

func contextStore() *config.ContextStore {
	return config.NewContextStore(filepath.Join(GetConfig().Global.ConfigDir, "context.yaml"))
}

var errNoThread = errors.New("no thread selected")

// resolveThreadID picks the explicit thread, falling back to the saved
// context.
func resolveThreadID(explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	current, err := contextStore().Load()
	if err != nil {
		return "", err
	}
	if current.IsEmpty() {
		return "", fmt.Errorf("%w: pass --thread or run 'threadview thread use <id>'", errNoThread)
	}
	return current.ThreadID, nil
}
