package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"

	"tgblog/internal/config"
	"tgblog/internal/constants"
	"tgblog/internal/database"
	"tgblog/internal/errors"
	"tgblog/internal/models"
	"tgblog/internal/retry"
	"tgblog/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	configPath string
	envFile    string
	verbose    bool

	cfg    *models.Config
	logger *logrus.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "tgblog",
		Short: "Turn a Telegram channel export into a blog feed",
		Long: `tgblog reads the result.json of a Telegram Desktop channel export,
merges media albums into single posts and writes posts.json for a static
blog front end. It can also build RSS/Atom feeds and preview the result.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a JSON or YAML config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newFeedCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	if a.configPath != "" {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Default()
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.JSONFormatter{})
	if a.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if level, err := logrus.ParseLevel(a.cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Invalid log level %q, defaulting to info", a.cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	}
	a.logger = logger
	return nil
}

// exportDir picks the export directory from args or config.
func (a *app) exportDir(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.ExportDir != "" {
		return a.cfg.ExportDir, nil
	}
	return "", fmt.Errorf("no export directory given; pass it as an argument or set export_dir")
}

// startTracing initialises OpenTelemetry and returns its shutdown function.
func (a *app) startTracing(ctx context.Context) func() {
	tm := tracing.NewTracingManager(a.cfg.Tracing, Version, a.logger)
	if err := tm.Initialize(ctx); err != nil {
		a.logger.Warnf("Failed to initialize tracing: %v", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultTracingShutdownSec)*time.Second)
		defer cancel()
		if err := tm.Shutdown(ctx); err != nil {
			a.logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}
}

// openArchive opens the SQLite archive when a path is configured.
func (a *app) openArchive(ctx context.Context) (*database.Database, error) {
	if a.cfg.Output.DatabasePath == "" {
		return nil, nil
	}
	backoff := retry.NewBackoff(retry.FromConfig(a.cfg.Retry)).OnRetry(func(attempt int, delay time.Duration, err error) {
		errors.FromLogrus(a.logger).LogRetryableError(err, "Database busy, retrying", logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		})
	})
	db, err := database.New(ctx, a.cfg.Output.DatabasePath, backoff)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return db, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tgblog %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		},
	}
}
