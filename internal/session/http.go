package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	maxErrorBodyBytes  = 512
	maxResponseBytes   = 8 * 1024 * 1024
)

type listResponse struct {
	Sessions []Session `json:"sessions"`
}

// HTTPSource calls a session gateway's list endpoint. The request body is
// the Query; the response is {"sessions": [...]}.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a gateway-backed source. A nil client gets a
// client with a default timeout.
func NewHTTPSource(url string, client *http.Client) (*HTTPSource, error) {
	if url == "" {
		return nil, fmt.Errorf("session gateway url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSource{url: url, client: client}, nil
}

func (h *HTTPSource) Name() string { return "http" }

// List posts q to the gateway and decodes the returned sessions.
func (h *HTTPSource) List(ctx context.Context, q Query) ([]Session, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out listResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode sessions: %v", ErrUpstream, err)
	}
	return out.Sessions, nil
}
