package activity

import (
	"strings"
	"time"

	"project-tracker/internal/session"
)

// timestampLayout renders UTC times the way browsers print ISO-8601.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	noRecentActivity = "No recent activity"
	noActiveSessions = "No active sessions"
	unknownAgentID   = "unknown"
	unknownAgentName = "Unknown Agent"
	maxRecentWork    = 3
)

// Agent is the dashboard view of one session's agent.
type Agent struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          Status   `json:"status"`
	CurrentActivity string   `json:"currentActivity"`
	LastUpdated     string   `json:"lastUpdated"`
	SessionKey      string   `json:"sessionKey"`
	RecentWork      []string `json:"recentWork"`
}

// Identity names the placeholder agent reported when there is nothing
// live to show.
type Identity struct {
	ID         string
	Name       string
	SessionKey string
}

// DefaultFallbackIdentity is the placeholder used out of the box.
func DefaultFallbackIdentity() Identity {
	return Identity{ID: "cipher", Name: "Cipher (You)", SessionKey: "main"}
}

// Options configures an Aggregator. Zero values select defaults; a nil
// Names selects DefaultNames while an empty non-nil table disables lookup.
type Options struct {
	Names      Names
	Window     time.Duration
	Summarizer *Summarizer
	Fallback   Identity
	Now        func() time.Time
}

// Aggregator turns session records into agent activity.
type Aggregator struct {
	names      Names
	classifier Classifier
	summarizer *Summarizer
	fallback   Identity
	now        func() time.Time
}

// NewAggregator creates an aggregator from opts.
func NewAggregator(opts Options) *Aggregator {
	if opts.Names == nil {
		opts.Names = DefaultNames()
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWorkingWindow
	}
	if opts.Summarizer == nil {
		opts.Summarizer = defaultSummarizer
	}
	if opts.Fallback == (Identity{}) {
		opts.Fallback = DefaultFallbackIdentity()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		names:      opts.Names,
		classifier: Classifier{Window: opts.Window},
		summarizer: opts.Summarizer,
		fallback:   opts.Fallback,
		now:        opts.Now,
	}
}

// Aggregate maps each session that has a last message to one Agent,
// preserving input order. It never returns an empty slice: with no
// qualifying sessions it returns a single offline placeholder.
func (a *Aggregator) Aggregate(sessions []session.Session) []Agent {
	now := a.now()

	agents := make([]Agent, 0, len(sessions))
	for _, s := range sessions {
		if s.LastMessage == nil {
			continue
		}
		agents = append(agents, a.agentFor(s, now))
	}

	if len(agents) == 0 {
		agents = append(agents, a.Offline(noActiveSessions, nil))
	}
	return agents
}

// Offline builds the placeholder agent with the configured identity,
// stamped with the current time.
func (a *Aggregator) Offline(currentActivity string, recentWork []string) Agent {
	work := make([]string, 0, len(recentWork))
	work = append(work, recentWork...)
	return Agent{
		ID:              a.fallback.ID,
		Name:            a.fallback.Name,
		Status:          StatusOffline,
		CurrentActivity: currentActivity,
		LastUpdated:     FormatTimestamp(a.now()),
		SessionKey:      a.fallback.SessionKey,
		RecentWork:      work,
	}
}

func (a *Aggregator) agentFor(s session.Session, now time.Time) Agent {
	last := session.FromMillis(s.LastMessage.Timestamp)
	if last.IsZero() {
		last = now
	}

	id := unknownAgentID
	if s.Label != "" {
		id = strings.ToLower(s.Label)
	}

	current := noRecentActivity
	if n := len(s.Messages); n > 0 {
		current = a.summarizer.Summarize(s.Messages[n-1].Content)
	}

	return Agent{
		ID:              id,
		Name:            a.displayName(id, s.Label),
		Status:          a.classifier.Classify(last, now),
		CurrentActivity: current,
		LastUpdated:     FormatTimestamp(last),
		SessionKey:      s.SessionKey,
		RecentWork:      a.recentWork(s.Messages),
	}
}

func (a *Aggregator) displayName(id, label string) string {
	if name, ok := a.names.Lookup(id); ok {
		return name
	}
	if label != "" {
		return label
	}
	return unknownAgentName
}

// recentWork summarizes the last three assistant messages, oldest first,
// dropping summaries that come out empty.
func (a *Aggregator) recentWork(msgs []session.Message) []string {
	var assistant []session.Message
	for _, m := range msgs {
		if m.Role == session.RoleAssistant {
			assistant = append(assistant, m)
		}
	}
	if len(assistant) > maxRecentWork {
		assistant = assistant[len(assistant)-maxRecentWork:]
	}

	work := make([]string, 0, len(assistant))
	for _, m := range assistant {
		if summary := a.summarizer.Summarize(m.Content); summary != "" {
			work = append(work, summary)
		}
	}
	return work
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with millisecond
// precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
