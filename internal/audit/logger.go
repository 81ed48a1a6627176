package audit

import (
	"context"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventEntryDelete      EventType = "entry_delete"
	EventSMSThresholdSet  EventType = "sms_threshold_update"
	EventAdminAuthFailure EventType = "admin_auth_failure"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	AuthUser  string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// level is warn for events that indicate rejected traffic.
func (t EventType) level() zerolog.Level {
	switch t {
	case EventAdminAuthFailure, EventRateLimitExceed:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log writes one audit line. The chi request id is attached when ctx carries one.
func Log(ctx context.Context, event Event) {
	e := log.WithLevel(event.Type.level()).
		Str("audit", string(event.Type))

	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		e = e.Str("request_id", reqID)
	}
	if event.AuthUser != "" {
		e = e.Str("authUser", event.AuthUser)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", event.UserAgent)
	}
	if len(event.Details) > 0 {
		e = e.Dict("details", zerolog.Dict().Fields(event.Details))
	}

	e.Msg("audit event")
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
