package session

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one chat session as reported by a session source.
// Optional fields mirror the upstream wire shape: a session without a
// LastMessage has never recorded activity.
type Session struct {
	SessionKey  string       `json:"sessionKey"`
	Kind        string       `json:"kind"`
	AgentID     string       `json:"agentId,omitempty"`
	Label       string       `json:"label,omitempty"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	Messages    []Message    `json:"messages,omitempty"`
}

// LastMessage carries the epoch-millisecond timestamp of the newest message.
type LastMessage struct {
	Timestamp int64 `json:"timestamp"`
}

// UnmarshalJSON accepts integer, fractional and exponent timestamps.
func (m *LastMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp json.Number `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := decodeMillis(raw.Timestamp)
	if err != nil {
		return err
	}
	m.Timestamp = ts
	return nil
}

// Message is a single transcript entry.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// UnmarshalJSON accepts integer, fractional and exponent timestamps.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Timestamp json.Number `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := decodeMillis(raw.Timestamp)
	if err != nil {
		return err
	}
	*m = Message(raw.plain)
	m.Timestamp = ts
	return nil
}

// decodeMillis converts a JSON number of epoch milliseconds to int64,
// rounding fractional values. An absent or null number decodes as 0.
func decodeMillis(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if ms, err := n.Int64(); err == nil {
		return ms, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("invalid timestamp %q", n.String())
	}
	return int64(math.Round(f)), nil
}

// Query bounds a session listing. It matches the upstream
// sessions_list call: sessions active within ActiveMinutes, at most Limit
// sessions, each carrying at most MessageLimit trailing messages.
type Query struct {
	ActiveMinutes int `json:"activeMinutes"`
	Limit         int `json:"limit"`
	MessageLimit  int `json:"messageLimit"`
}

// DefaultQuery is the listing used by the dashboard.
func DefaultQuery() Query {
	return Query{ActiveMinutes: 120, Limit: 10, MessageLimit: 3}
}

// Millis converts t to epoch milliseconds. The zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time. 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
