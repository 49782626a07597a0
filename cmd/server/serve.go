package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"project-tracker/internal/config"
	"project-tracker/internal/observability"
	"project-tracker/internal/realtime"
	"project-tracker/internal/watcher"
)

const (
	shutdownTimeout = 10 * time.Second
	projectsWatch   = "projects"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, push hub and static front end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 8420, "HTTP listen port")
	flags.String("static-dir", "./public", "directory served at /")
	flags.Duration("poll-interval", 10*time.Second, "agents push interval")

	bindFlag(opts.v, config.KeyPort, flags.Lookup("port"))
	bindFlag(opts.v, config.KeyStaticDir, flags.Lookup("static-dir"))
	bindFlag(opts.v, config.KeyPollInterval, flags.Lookup("poll-interval"))

	return cmd
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := observability.Logger()

	rtServer := realtime.New(a.snapshots, realtime.Options{
		Metrics:      a.metrics,
		Gatherer:     a.registry,
		StaticDir:    a.cfg.Server.StaticDir,
		PollInterval: a.cfg.Server.PollInterval,
	})

	// Reload and push the project document whenever its file changes.
	fileWatch := watcher.New(0, func(name, path string) {
		a.projects.Invalidate()
		log.Info("project file changed, pushing snapshot", "path", path)
		rtServer.BroadcastProjects(ctx)
	})
	defer fileWatch.Shutdown()

	if a.cfg.Projects.Watch {
		if err := fileWatch.Watch(projectsWatch, a.cfg.Projects.File); err != nil {
			// Non-fatal: snapshots still load, they just are not pushed on change.
			log.Warn("project file watch disabled", "path", a.cfg.Projects.File, "error", err)
		}
	}

	go rtServer.Run(ctx)

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           rtServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("project tracker listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	rtServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return httpServer.Close()
	}
	return nil
}
