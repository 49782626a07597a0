package session

import (
	"fmt"
	"testing"
)

func makeMessage(id int) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   fmt.Sprintf("line-%d", id),
		Timestamp: int64(1000 + id),
	}
}

func TestRingBuffer_EmptyRead(t *testing.T) {
	rb := NewRingBuffer[Message](10)
	msgs := rb.ReadAll()
	if len(msgs) != 0 {
		t.Errorf("expected empty buffer, got %d messages", len(msgs))
	}
	if rb.Len() != 0 {
		t.Errorf("expected Len 0, got %d", rb.Len())
	}
}

func TestRingBuffer_PartialFill(t *testing.T) {
	rb := NewRingBuffer[Message](10)
	for i := 0; i < 5; i++ {
		rb.Write(makeMessage(i))
	}

	msgs := rb.ReadAll()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}

	for i, m := range msgs {
		expected := fmt.Sprintf("line-%d", i)
		if m.Content != expected {
			t.Errorf("message %d: expected %s, got %s", i, expected, m.Content)
		}
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	rb := NewRingBuffer[Message](5)
	for i := 0; i < 8; i++ {
		rb.Write(makeMessage(i))
	}

	msgs := rb.ReadAll()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}

	// Should have messages 3,4,5,6,7 (oldest dropped).
	for i, m := range msgs {
		expected := fmt.Sprintf("line-%d", i+3)
		if m.Content != expected {
			t.Errorf("message %d: expected %s, got %s", i, expected, m.Content)
		}
	}
}

func TestRingBuffer_ExactCapacity(t *testing.T) {
	rb := NewRingBuffer[Message](3)
	for i := 0; i < 3; i++ {
		rb.Write(makeMessage(i))
	}

	msgs := rb.ReadAll()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if rb.Len() != 3 {
		t.Errorf("expected Len 3, got %d", rb.Len())
	}

	for i, m := range msgs {
		expected := fmt.Sprintf("line-%d", i)
		if m.Content != expected {
			t.Errorf("message %d: expected %s, got %s", i, expected, m.Content)
		}
	}
}

func TestRingBuffer_ZeroCapacity(t *testing.T) {
	rb := NewRingBuffer[Message](0)
	rb.Write(makeMessage(1))

	if got := rb.ReadAll(); len(got) != 0 {
		t.Errorf("expected zero-capacity buffer to retain nothing, got %d", len(got))
	}
}
