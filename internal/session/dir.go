package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultScannerBufSize = 1024 * 1024 // 1 MB
	defaultDirCacheSize   = 128
	transcriptExt         = ".jsonl"

	// transcriptWindow is the minimum number of trailing messages retained
	// per parsed transcript. A larger MessageLimit widens the window.
	transcriptWindow = 64
)

// transcriptLine is one JSONL record. A "session" record carries
// metadata; a "message" record (or any record with a role) is a message.
type transcriptLine struct {
	Type       string `json:"type"`
	SessionKey string `json:"sessionKey"`
	Kind       string `json:"kind"`
	AgentID    string `json:"agentId"`
	Label      string `json:"label"`
	Role       Role   `json:"role"`
	Content    string      `json:"content"`
	Timestamp  json.Number `json:"timestamp"`
}

type transcript struct {
	modTime      time.Time
	size         int64
	window       int
	session      Session
	lastActivity time.Time
}

// DirSource reads session transcripts from a directory of .jsonl files,
// one file per session.
type DirSource struct {
	dir   string
	now   func() time.Time
	cache *lru.Cache[string, transcript]
}

// NewDirSource creates a transcript directory source. cacheSize bounds
// the number of parsed transcripts kept in memory.
func NewDirSource(dir string, cacheSize int, now func() time.Time) (*DirSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript directory is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultDirCacheSize
	}
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, transcript](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create transcript cache: %w", err)
	}
	return &DirSource{dir: dir, now: now, cache: cache}, nil
}

func (d *DirSource) Name() string { return "dir" }

// List returns sessions active within q.ActiveMinutes, newest first.
func (d *DirSource) List(ctx context.Context, q Query) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, d.dir, err)
	}

	now := d.now()
	var cutoff time.Time
	if q.ActiveMinutes > 0 {
		cutoff = now.Add(-time.Duration(q.ActiveMinutes) * time.Minute)
	}

	window := max(transcriptWindow, q.MessageLimit)

	var found []transcript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transcriptExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, ok := d.load(filepath.Join(d.dir, entry.Name()), window)
		if !ok {
			continue // Skip unreadable transcripts.
		}
		if !cutoff.IsZero() && t.lastActivity.Before(cutoff) {
			continue
		}
		found = append(found, t)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].lastActivity.After(found[j].lastActivity)
	})
	if q.Limit > 0 && len(found) > q.Limit {
		found = found[:q.Limit]
	}

	sessions := make([]Session, 0, len(found))
	for _, t := range found {
		s := t.session
		msgs := tail(t.session.Messages, q.MessageLimit)
		s.Messages = append([]Message(nil), msgs...)
		if s.LastMessage != nil {
			lm := *s.LastMessage
			s.LastMessage = &lm
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// load returns the parsed transcript at path, reusing the cached parse
// while the file's mtime and size are unchanged and it retained at least
// window messages.
func (d *DirSource) load(path string, window int) (transcript, bool) {
	info, err := os.Stat(path)
	if err != nil {
		d.cache.Remove(path)
		return transcript{}, false
	}

	if cached, ok := d.cache.Get(path); ok {
		if cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() && cached.window >= window {
			return cached, true
		}
		d.cache.Remove(path)
	}

	t, err := parseTranscript(path, info, window)
	if err != nil {
		return transcript{}, false
	}
	d.cache.Add(path, t)
	return t, true
}

func parseTranscript(path string, info os.FileInfo, size int) (transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return transcript{}, err
	}
	defer f.Close()

	sess := Session{
		SessionKey: strings.TrimSuffix(filepath.Base(path), transcriptExt),
		Kind:       "chat",
	}
	window := NewRingBuffer[Message](size)
	var newest int64
	var count int

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), defaultScannerBufSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec transcriptLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // Malformed lines are skipped.
		}

		switch {
		case rec.Type == "session":
			if rec.SessionKey != "" {
				sess.SessionKey = rec.SessionKey
			}
			if rec.Kind != "" {
				sess.Kind = rec.Kind
			}
			if rec.AgentID != "" {
				sess.AgentID = rec.AgentID
			}
			if rec.Label != "" {
				sess.Label = rec.Label
			}
		case rec.Type == "message" || rec.Role != "":
			ts, err := decodeMillis(rec.Timestamp)
			if err != nil {
				continue
			}
			window.Write(Message{Role: rec.Role, Content: rec.Content, Timestamp: ts})
			count++
			if ts > newest {
				newest = ts
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return transcript{}, fmt.Errorf("scan %s: %w", path, err)
	}

	lastActivity := info.ModTime().UTC()
	if newest > 0 {
		lastActivity = FromMillis(newest)
	}
	if count > 0 {
		sess.Messages = window.ReadAll()
		sess.LastMessage = &LastMessage{Timestamp: Millis(lastActivity)}
	}

	return transcript{
		modTime:      info.ModTime(),
		size:         info.Size(),
		window:       size,
		session:      sess,
		lastActivity: lastActivity,
	}, nil
}
