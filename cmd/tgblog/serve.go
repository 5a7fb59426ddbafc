package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/metrics"
	"tgblog/internal/models"
	"tgblog/internal/pipeline"
	"tgblog/internal/validation"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "serve [export-dir]",
		Short: "Preview the converted export over HTTP",
		Long: `serve exposes the export directory as static files together with a small
JSON API over the converted posts. posts.json is reloaded when it changes.
With --db the API reads from the SQLite archive instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.exportDir(args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				if err := validation.ValidatePort(port, "--port"); err != nil {
					return err
				}
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("db") {
				a.cfg.Output.DatabasePath = dbPath
			}

			ctx := cmd.Context()
			defer a.startTracing(ctx)()

			reg := metrics.NewRegistry()
			source, closeSource, err := a.postSource(ctx, dir, reg)
			if err != nil {
				return err
			}
			defer closeSource()

			server := NewServer(a.cfg.Server, source, dir, reg, a.logger)
			serverErrCh := make(chan error, 1)
			go func() {
				serverErrCh <- server.Start()
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("Received shutdown signal")
			case err := <-serverErrCh:
				if stderrors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown server gracefully: %w", err)
			}
			if err := <-serverErrCh; !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("Server shutdown completed")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", constants.DefaultServerPort, "port to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "", "serve posts from this SQLite archive")

	return cmd
}

// postSource opens the archive when configured and otherwise watches the
// posts file. The returned function releases the source.
func (a *app) postSource(ctx context.Context, dir string, reg *metrics.Registry) (PostSource, func(), error) {
	archive, err := a.openArchive(ctx)
	if err != nil {
		return nil, nil, err
	}
	if archive != nil {
		if n, err := archive.CountPosts(ctx); err == nil {
			reg.SetGauge(metrics.PostsServed, float64(n), nil, "Posts available to the API")
		}
		return archive, func() { _ = archive.Close() }, nil
	}

	watcher := pipeline.NewPostsWatcher(
		filepath.Join(dir, a.cfg.Output.PostsFile),
		time.Duration(a.cfg.Server.WatchIntervalSec)*time.Second,
		a.logger,
	)
	if err := watcher.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load posts, run convert first: %w", err)
	}
	reg.SetGauge(metrics.PostsServed, float64(len(watcher.Posts())), nil, "Posts available to the API")
	watcher.OnChange(func(posts []models.Post) {
		reg.SetGauge(metrics.PostsServed, float64(len(posts)), nil, "Posts available to the API")
	})

	watchCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Start(watchCtx)
	}()

	return watcherSource{watcher: watcher}, func() {
		stop()
		<-done
	}, nil
}
