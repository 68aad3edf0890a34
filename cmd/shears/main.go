package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sydlexius/shears/internal/config"
	"github.com/sydlexius/shears/internal/database"
	"github.com/sydlexius/shears/internal/history"
	"github.com/sydlexius/shears/internal/locator"
	"github.com/sydlexius/shears/internal/logging"
	"github.com/sydlexius/shears/internal/version"
)

func main() {
	a := newApp(os.Stderr)
	err := a.rootCmd().Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command shares: the loaded configuration, the
// logger and, once a command asks for it, the history database.
type app struct {
	cfg        *config.Config
	logManager *logging.Manager
	logger     *slog.Logger
	db         *sql.DB

	cfgFile   string
	verbose   bool
	logFormat string
	logFile   string
	dbPath    string
}

func newApp(stderr io.Writer) *app {
	// Bootstrap logger until the config file has been read.
	mgr, logger := logging.NewManager(logging.DefaultConfig(), stderr)
	return &app{
		cfg:        config.Default(),
		logManager: mgr,
		logger:     logger,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shears",
		Short: "Reclaim disk space from a game installation",
		Long: `shears reports which optional content an installation carries (texture
quality tiers, videos, limited-time event data), deletes what you no longer
want and marks the installation so the launcher does not download it again.`,
		Version:           version.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is "+config.DefaultPath()+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also write logs to this file (rotated)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "history database path")

	root.AddCommand(
		a.scanCmd(),
		a.shearCmd(),
		a.locateCmd(),
		a.watchCmd(),
		a.historyCmd(),
	)
	return root
}

// setup loads the configuration, applies command-line overrides and
// reconfigures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("log-file") {
		cfg.Logging.FilePath = a.logFile
	}
	if flags.Changed("db") {
		cfg.Database.Path = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	a.cfg = cfg
	a.logManager.Reconfigure(cfg.Logging)
	slog.SetDefault(a.logger)
	a.logger.Debug("configuration loaded", "path", path, "logging", cfg.Logging.String())
	return nil
}

// historyService opens the database on first use.
func (a *app) historyService() (*history.Service, error) {
	if a.db == nil {
		db, err := database.Open(a.cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.logger.Debug("database ready", "path", a.cfg.Database.Path)
	}
	return history.NewService(a.db), nil
}

// recorder returns the history service, or nil with a warning when the
// database is unavailable. Recording is best-effort.
func (a *app) recorder() *history.Service {
	svc, err := a.historyService()
	if err != nil {
		a.logger.Warn("history unavailable", "error", err)
		return nil
	}
	return svc
}

func (a *app) markers() locator.Markers {
	return locator.Markers{
		Data:       a.cfg.Locator.DataMarker,
		Executable: a.cfg.Locator.ExeMarker,
	}
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", "error", err)
		}
	}
	a.logManager.Close() //nolint:errcheck
}
