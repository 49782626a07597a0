// Package snapshot builds the read-only dashboard payloads. Every build
// yields a schema-valid snapshot; failures are reported alongside it as a
// degraded Outcome instead of replacing it.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"project-tracker/internal/activity"
	"project-tracker/internal/observability"
	"project-tracker/internal/project"
	"project-tracker/internal/session"
)

// Provenance tags.
const (
	SourceSessions = "openclaw-sessions"
	SourceProjects = "projects-file"
	SourceFallback = "fallback"
)

// Snapshot kinds, used for metrics and push topics.
const (
	KindAgents   = "agents"
	KindProjects = "projects"
)

const (
	degradedActivity = "Unable to fetch real-time data"
	degradedHint     = "Check OpenClaw gateway connection"
)

// Agents is the /api/agents payload.
type Agents struct {
	Agents      []activity.Agent `json:"agents"`
	LastUpdated string           `json:"lastUpdated"`
	Timestamp   int64            `json:"timestamp"`
	Source      string           `json:"source"`
	SnapshotID  string           `json:"snapshotId"`
}

// Projects is the /api/projects payload: the stored document plus the
// computed header metrics.
type Projects struct {
	project.Document
	Metrics    project.Metrics `json:"metrics"`
	Timestamp  int64           `json:"timestamp"`
	Source     string          `json:"source"`
	SnapshotID string          `json:"snapshotId"`
}

// Dashboard bundles both snapshots.
type Dashboard struct {
	Agents   Agents   `json:"agents"`
	Projects Projects `json:"projects"`
}

// Outcome is a built snapshot. Err is nil for a live snapshot; otherwise
// Snapshot holds the fallback payload and Err the cause.
type Outcome[T any] struct {
	Snapshot T
	Err      error
}

// Degraded reports whether the snapshot is a fallback.
func (o Outcome[T]) Degraded() bool { return o.Err != nil }

// Config wires a Service.
type Config struct {
	Sessions   session.Source
	Query      session.Query
	Aggregator *activity.Aggregator
	Projects   project.Store
	Timeout    time.Duration
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// Service builds snapshots. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	sessions   session.Source
	query      session.Query
	aggregator *activity.Aggregator
	projects   project.Store
	timeout    time.Duration
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewService creates a snapshot service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session source is required")
	}
	if cfg.Projects == nil {
		return nil, fmt.Errorf("project store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = activity.NewAggregator(activity.Options{Now: cfg.Now})
	}
	if cfg.Query == (session.Query{}) {
		cfg.Query = session.DefaultQuery()
	}
	return &Service{
		sessions:   cfg.Sessions,
		query:      cfg.Query,
		aggregator: cfg.Aggregator,
		projects:   cfg.Projects,
		timeout:    cfg.Timeout,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}, nil
}

// Agents lists sessions and aggregates them into agent activity.
func (s *Service) Agents(ctx context.Context) Outcome[Agents] {
	start := time.Now()

	agents, err := s.buildAgents(ctx)
	now := s.now()

	source := SourceSessions
	if err != nil {
		source = SourceFallback
		offline := s.aggregator.Offline(degradedActivity, []string{degradedHint})
		offline.LastUpdated = activity.FormatTimestamp(now)
		agents = []activity.Agent{offline}
	}
	out := Outcome[Agents]{
		Snapshot: Agents{
			Agents:      agents,
			LastUpdated: activity.FormatTimestamp(now),
			Timestamp:   now.UnixMilli(),
			Source:      source,
			SnapshotID:  uuid.NewString(),
		},
		Err: err,
	}

	s.metrics.ObserveSnapshot(KindAgents, source, time.Since(start))
	s.metrics.SetAgentCounts(countByStatus(agents))
	return out
}

func (s *Service) buildAgents(ctx context.Context) (agents []activity.Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregate agents: panic: %v", r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sessions, err := s.listSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions from %s: %w", s.sessions.Name(), err)
	}
	return s.aggregator.Aggregate(sessions), nil
}

type listResult struct {
	sessions []session.Session
	err      error
}

// listSessions returns when the source answers or ctx ends, whichever is
// first, so a source that ignores its context cannot hold the request.
func (s *Service) listSessions(ctx context.Context) ([]session.Session, error) {
	done := make(chan listResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- listResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		sessions, err := s.sessions.List(ctx, s.query)
		done <- listResult{sessions: sessions, err: err}
	}()

	select {
	case res := <-done:
		return res.sessions, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Projects loads the project document and computes its metrics.
func (s *Service) Projects(ctx context.Context) Outcome[Projects] {
	start := time.Now()

	now := s.now()
	doc, err := s.loadProjects(ctx)
	source := SourceProjects
	if err != nil {
		doc = project.EmptyDocument(activity.FormatTimestamp(now))
		source = SourceFallback
	}

	out := Outcome[Projects]{
		Snapshot: Projects{
			Document:   doc,
			Metrics:    project.ComputeMetrics(doc.Projects),
			Timestamp:  now.UnixMilli(),
			Source:     source,
			SnapshotID: uuid.NewString(),
		},
		Err: err,
	}

	s.metrics.ObserveSnapshot(KindProjects, source, time.Since(start))
	return out
}

func (s *Service) loadProjects(ctx context.Context) (doc project.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load projects: panic: %v", r)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.projects.Load(ctx)
}

// Dashboard builds both snapshots concurrently. Each half carries its own
// degradation cause.
func (s *Service) Dashboard(ctx context.Context) (Outcome[Agents], Outcome[Projects]) {
	var (
		agents   Outcome[Agents]
		projects Outcome[Projects]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		agents = s.Agents(gctx)
		return nil
	})
	g.Go(func() error {
		projects = s.Projects(gctx)
		return nil
	})
	_ = g.Wait()

	return agents, projects
}

func countByStatus(agents []activity.Agent) map[string]int {
	counts := make(map[string]int, 3)
	for _, a := range agents {
		counts[string(a.Status)]++
	}
	return counts
}
