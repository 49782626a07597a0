package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	Configure(&buf, "debug")
	t.Cleanup(func() { logger.Store(prev) })

	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
	LoggerFromContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-123", line["request_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestMetrics_ObserveSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.ObserveSnapshot("agents", "fallback", 10*time.Millisecond)
	m.ObserveSnapshot("agents", "fallback", 10*time.Millisecond)
	m.ObserveSnapshot("projects", "projects-file", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotRequests.WithLabelValues("agents", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotRequests.WithLabelValues("projects", "projects-file")))
}

func TestMetrics_AgentCountsReset(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.SetAgentCounts(map[string]int{"working": 2, "idle": 1})
	m.SetAgentCounts(map[string]int{"offline": 1})

	assert.Equal(t, 1, testutil.CollectAndCount(m.agents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agents.WithLabelValues("offline")))
}

func TestMustNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.WSClientConnected()
	second.WSClientConnected()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.wsClients))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSnapshot("agents", "live", time.Second)
	m.SetAgentCounts(map[string]int{"idle": 1})
	m.WSClientConnected()
	m.WSClientDisconnected()
}
