package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLogFromRequest(t *testing.T) {
	buf := captureLog(t)

	req := httptest.NewRequest("DELETE", "/admin/formula", nil)
	req.RemoteAddr = "203.0.113.7:5123"
	req.Header.Set("User-Agent", "booth-tablet")
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-1"))

	LogFromRequest(req, Event{
		Type:     EventEntryDelete,
		AuthUser: "staff",
		Details:  map[string]interface{}{"type": "formula", "phone": "010****0001"},
	})

	line := decodeLine(t, buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "entry_delete", line["audit"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "staff", line["authUser"])
	assert.Equal(t, "203.0.113.7", line["ip"])
	assert.Equal(t, "booth-tablet", line["user_agent"])
	assert.Equal(t, map[string]any{"type": "formula", "phone": "010****0001"}, line["details"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		event EventType
		level string
	}{
		{EventEntryDelete, "info"},
		{EventSMSThresholdSet, "info"},
		{EventAdminAuthFailure, "warn"},
		{EventRateLimitExceed, "warn"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			buf := captureLog(t)

			Log(context.Background(), Event{Type: tt.event})

			line := decodeLine(t, buf)
			assert.Equal(t, tt.level, line["level"])
			assert.NotContains(t, line, "request_id")
			assert.NotContains(t, line, "details")
		})
	}
}
