package session

import (
	"context"
	"errors"
	"time"
)

// ErrUpstream reports that the session backend could not be reached or
// answered with something unusable.
var ErrUpstream = errors.New("session source unavailable")

// Source lists recent sessions. Implementations must be safe for
// concurrent use.
type Source interface {
	Name() string
	List(ctx context.Context, q Query) ([]Session, error)
}

// MockSource serves a fixed session set shaped like the real gateway's
// output. Timestamps are relative to the injected clock.
type MockSource struct {
	now func() time.Time
}

// NewMockSource creates a mock source. A nil clock uses time.Now.
func NewMockSource(now func() time.Time) *MockSource {
	if now == nil {
		now = time.Now
	}
	return &MockSource{now: now}
}

func (m *MockSource) Name() string { return "mock" }

// List returns the mock sessions, trimmed to the query bounds.
func (m *MockSource) List(ctx context.Context, q Query) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now()
	sessions := []Session{
		{
			SessionKey:  "main",
			Kind:        "chat",
			Label:       "Cipher (Main Session)",
			LastMessage: &LastMessage{Timestamp: Millis(now.Add(-time.Minute))},
			Messages: []Message{
				{
					Role:      RoleUser,
					Content:   "Integrate real OpenClaw session data",
					Timestamp: Millis(now.Add(-time.Minute)),
				},
				{
					Role:      RoleAssistant,
					Content:   "Building API integration for live agent tracking in project tracker",
					Timestamp: Millis(now.Add(-50 * time.Second)),
				},
			},
		},
	}

	for i := range sessions {
		sessions[i].Messages = tail(sessions[i].Messages, q.MessageLimit)
	}
	if q.Limit > 0 && len(sessions) > q.Limit {
		sessions = sessions[:q.Limit]
	}
	return sessions, nil
}

// tail keeps the last n messages. A non-positive n keeps everything.
func tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
