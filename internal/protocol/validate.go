package protocol

import (
	"encoding/json"
	"fmt"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeSnapshotRequest: true,
}

var validTopics = map[string]bool{
	TopicAgents:   true,
	TopicProjects: true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if msg.Payload == nil {
		return nil, fmt.Errorf("missing 'payload' field")
	}

	// Validate required payload fields per type.
	switch msg.Type {
	case TypeSnapshotRequest:
		if _, err := ParseSnapshotRequest(&msg); err != nil {
			return nil, err
		}
	}

	return &msg, nil
}

// ParseSnapshotRequest decodes and checks a snapshot.request payload.
func ParseSnapshotRequest(msg *Message) (SnapshotRequestPayload, error) {
	var p SnapshotRequestPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
	}
	if p.Topic == "" {
		return p, fmt.Errorf("missing required field 'topic' in %s payload", msg.Type)
	}
	if !validTopics[p.Topic] {
		return p, fmt.Errorf("unknown topic: %s", p.Topic)
	}
	return p, nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
