package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestMockSource_List(t *testing.T) {
	src := NewMockSource(clock)

	sessions, err := src.List(context.Background(), DefaultQuery())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, "main", s.SessionKey)
	assert.Equal(t, "Cipher (Main Session)", s.Label)
	require.NotNil(t, s.LastMessage)
	assert.Equal(t, fixedNow.Add(-time.Minute).UnixMilli(), s.LastMessage.Timestamp)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, RoleAssistant, s.Messages[1].Role)
}

func TestMockSource_MessageLimit(t *testing.T) {
	src := NewMockSource(clock)

	sessions, err := src.List(context.Background(), Query{MessageLimit: 1})
	require.NoError(t, err)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, RoleAssistant, sessions[0].Messages[0].Role)
}

func TestMockSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockSource(clock).List(ctx, DefaultQuery())
	assert.ErrorIs(t, err, context.Canceled)
}

func writeTranscript(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func msgLine(role Role, content string, ts time.Time) string {
	data, _ := json.Marshal(transcriptLine{Type: "message", Role: role, Content: content, Timestamp: json.Number(strconv.FormatInt(ts.UnixMilli(), 10))})
	return string(data)
}

func TestDirSource_ListFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()

	writeTranscript(t, dir, "older.jsonl",
		`{"type":"session","label":"Builder","kind":"chat"}`,
		msgLine(RoleAssistant, "Fixed the flaky test", fixedNow.Add(-30*time.Minute)),
	)
	writeTranscript(t, dir, "newer.jsonl",
		`{"type":"session","sessionKey":"agent:main","label":"main"}`,
		msgLine(RoleUser, "ship it", fixedNow.Add(-3*time.Minute)),
		`not json at all`,
		msgLine(RoleAssistant, "Deployed the service", fixedNow.Add(-2*time.Minute)),
	)
	writeTranscript(t, dir, "stale.jsonl",
		msgLine(RoleAssistant, "Updated docs", fixedNow.Add(-5*time.Hour)),
	)
	writeTranscript(t, dir, "notes.txt", "ignored")

	src, err := NewDirSource(dir, 8, clock)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), Query{ActiveMinutes: 120, Limit: 10, MessageLimit: 3})
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "agent:main", sessions[0].SessionKey)
	assert.Equal(t, "main", sessions[0].Label)
	require.NotNil(t, sessions[0].LastMessage)
	assert.Equal(t, fixedNow.Add(-2*time.Minute).UnixMilli(), sessions[0].LastMessage.Timestamp)
	assert.Len(t, sessions[0].Messages, 2)

	assert.Equal(t, "older", sessions[1].SessionKey)
	assert.Equal(t, "Builder", sessions[1].Label)
}

func TestDirSource_LimitAndMessageLimit(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.jsonl", "b.jsonl", "c.jsonl"} {
		writeTranscript(t, dir, name,
			msgLine(RoleUser, "one", fixedNow.Add(-time.Duration(10+i)*time.Minute)),
			msgLine(RoleAssistant, "two", fixedNow.Add(-time.Duration(9+i)*time.Minute)),
			msgLine(RoleAssistant, "three", fixedNow.Add(-time.Duration(8+i)*time.Minute)),
		)
	}

	src, err := NewDirSource(dir, 0, clock)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), Query{Limit: 2, MessageLimit: 1})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].SessionKey)
	assert.Equal(t, "b", sessions[1].SessionKey)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, "three", sessions[0].Messages[0].Content)
}

func TestDirSource_MessageLimitWiderThanDefaultWindow(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		lines = append(lines, msgLine(RoleAssistant, fmt.Sprintf("m%d", i), fixedNow.Add(-time.Duration(80-i)*time.Second)))
	}
	writeTranscript(t, dir, "long.jsonl", lines...)

	src, err := NewDirSource(dir, 4, clock)
	require.NoError(t, err)

	// Cache a narrow parse first; the wider query must not reuse it.
	narrow, err := src.List(context.Background(), Query{MessageLimit: 3})
	require.NoError(t, err)
	require.Len(t, narrow[0].Messages, 3)

	wide, err := src.List(context.Background(), Query{MessageLimit: 100})
	require.NoError(t, err)
	require.Len(t, wide, 1)
	require.Len(t, wide[0].Messages, 80)
	assert.Equal(t, "m0", wide[0].Messages[0].Content)
	assert.Equal(t, "m79", wide[0].Messages[79].Content)
}

func TestDirSource_FractionalTimestamps(t *testing.T) {
	dir := t.TempDir()
	ts := fixedNow.Add(-time.Minute).UnixMilli()
	writeTranscript(t, dir, "f.jsonl",
		fmt.Sprintf(`{"type":"message","role":"assistant","content":"Testing","timestamp":%d.4}`, ts),
		`{"type":"message","role":"assistant","content":"bad","timestamp":"soon"}`,
	)

	src, err := NewDirSource(dir, 4, clock)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, ts, sessions[0].Messages[0].Timestamp)
	assert.Equal(t, ts, sessions[0].LastMessage.Timestamp)
}

func TestDirSource_TranscriptWithoutMessagesHasNoLastMessage(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "empty.jsonl", `{"type":"session","label":"quiet"}`)

	src, err := NewDirSource(dir, 4, time.Now)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].LastMessage)
	assert.Empty(t, sessions[0].Messages)
}

func TestDirSource_ReparsesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, "s.jsonl", msgLine(RoleAssistant, "Testing v1", fixedNow.Add(-time.Minute)))

	src, err := NewDirSource(dir, 4, clock)
	require.NoError(t, err)

	first, err := src.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Testing v1", first[0].Messages[0].Content)

	writeTranscript(t, dir, "s.jsonl",
		msgLine(RoleAssistant, "Testing v1", fixedNow.Add(-time.Minute)),
		msgLine(RoleAssistant, "Testing v2 with more text", fixedNow.Add(-30*time.Second)),
	)
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := src.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, second[0].Messages, 2)
	assert.Equal(t, "Testing v2 with more text", second[0].Messages[1].Content)
}

func TestDirSource_MissingDirectory(t *testing.T) {
	src, err := NewDirSource(filepath.Join(t.TempDir(), "missing"), 4, clock)
	require.NoError(t, err)

	_, err = src.List(context.Background(), DefaultQuery())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestNewDirSource_RequiresDir(t *testing.T) {
	_, err := NewDirSource("", 4, clock)
	assert.Error(t, err)
}

func TestHTTPSource_List(t *testing.T) {
	var got Query
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions":[{"sessionKey":"main","kind":"chat","label":"main","lastMessage":{"timestamp":1700000000000},"messages":[{"role":"assistant","content":"Created a thing"}]}]}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), DefaultQuery())
	require.NoError(t, err)
	assert.Equal(t, DefaultQuery(), got)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1700000000000), sessions[0].LastMessage.Timestamp)
	assert.Equal(t, "Created a thing", sessions[0].Messages[0].Content)
}

func TestHTTPSource_ListAcceptsFloatTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessions":[{"sessionKey":"main","kind":"chat","lastMessage":{"timestamp":1.7e12},"messages":[{"role":"assistant","content":"Deployed","timestamp":1773489600000.0}]}]}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	sessions, err := src.List(context.Background(), DefaultQuery())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1700000000000), sessions[0].LastMessage.Timestamp)
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, int64(1773489600000), sessions[0].Messages[0].Timestamp)
	assert.Equal(t, RoleAssistant, sessions[0].Messages[0].Role)
	assert.Equal(t, "Deployed", sessions[0].Messages[0].Content)
}

func TestMessage_UnmarshalTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"integer", `{"role":"user","content":"hi","timestamp":1700000000000}`, 1700000000000, false},
		{"exponent", `{"role":"user","content":"hi","timestamp":1.7e12}`, 1700000000000, false},
		{"fraction rounds", `{"role":"user","content":"hi","timestamp":1700000000000.6}`, 1700000000001, false},
		{"absent", `{"role":"user","content":"hi"}`, 0, false},
		{"null", `{"role":"user","content":"hi","timestamp":null}`, 0, false},
		{"not a number", `{"role":"user","content":"hi","timestamp":true}`, 0, true},
		{"out of range", `{"role":"user","content":"hi","timestamp":1e300}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			err := json.Unmarshal([]byte(tt.in), &m)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Timestamp)
			assert.Equal(t, RoleUser, m.Role)
			assert.Equal(t, "hi", m.Content)
		})
	}
}

func TestHTTPSource_Non2xxIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	_, err = src.List(context.Background(), DefaultQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSource_BadJSONIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessions":`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	_, err = src.List(context.Background(), DefaultQuery())
	assert.ErrorIs(t, err, ErrUpstream)
}
