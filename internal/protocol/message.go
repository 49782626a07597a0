package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types. Snapshot payloads are the same bodies
// served by the REST endpoints.
const (
	TypeAgentsSnapshot   = "agents.snapshot"
	TypeProjectsSnapshot = "projects.snapshot"
	TypeError            = "error"
)

// Client → Server message types.
const (
	TypeSnapshotRequest = "snapshot.request"
)

// Snapshot topics.
const (
	TopicAgents   = "agents"
	TopicProjects = "projects"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
)

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type SnapshotRequestPayload struct {
	Topic string `json:"topic"` // "agents" | "projects"
}
