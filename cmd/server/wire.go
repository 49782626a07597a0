package main

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"project-tracker/internal/activity"
	"project-tracker/internal/config"
	"project-tracker/internal/observability"
	"project-tracker/internal/project"
	"project-tracker/internal/session"
	"project-tracker/internal/snapshot"
)

type app struct {
	cfg       config.Config
	registry  *prometheus.Registry
	metrics   *observability.Metrics
	projects  *project.FileStore
	snapshots *snapshot.Service
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}

func wireApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.v, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.Configure(os.Stderr, cfg.LogLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.MustNewMetrics(registry)

	sessions, err := newSessionSource(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("wire session source: %w", err)
	}

	names := activity.DefaultNames()
	if cfg.Activity.NamesFile != "" {
		names, err = activity.LoadNames(cfg.Activity.NamesFile)
		if err != nil {
			return nil, fmt.Errorf("wire display names: %w", err)
		}
	}

	aggregator := activity.NewAggregator(activity.Options{
		Names:  names,
		Window: cfg.Activity.WorkingWindow,
		Fallback: activity.Identity{
			ID:         cfg.Activity.FallbackID,
			Name:       cfg.Activity.FallbackName,
			SessionKey: cfg.Activity.FallbackSessionKey,
		},
	})

	projects := project.NewFileStore(cfg.Projects.File)

	snapshots, err := snapshot.NewService(snapshot.Config{
		Sessions:   sessions,
		Aggregator: aggregator,
		Projects:   projects,
		Query: session.Query{
			ActiveMinutes: cfg.Sessions.ActiveMinutes,
			Limit:         cfg.Sessions.Limit,
			MessageLimit:  cfg.Sessions.MessageLimit,
		},
		Timeout: cfg.Server.RequestTimeout,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire snapshot service: %w", err)
	}

	observability.Logger().Info("tracker configured",
		"sessions_source", sessions.Name(),
		"projects_file", cfg.Projects.File,
		"poll_interval", cfg.Server.PollInterval.String(),
	)

	return &app{
		cfg:       cfg,
		registry:  registry,
		metrics:   metrics,
		projects:  projects,
		snapshots: snapshots,
	}, nil
}

func newSessionSource(cfg config.SessionsConfig) (session.Source, error) {
	switch cfg.Source {
	case config.SourceDir:
		return session.NewDirSource(cfg.Dir, cfg.CacheSize, time.Now)
	case config.SourceHTTP:
		return session.NewHTTPSource(cfg.URL, nil)
	default:
		return session.NewMockSource(time.Now), nil
	}
}
