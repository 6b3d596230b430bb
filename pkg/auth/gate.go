package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/tutogate/pkg/observability"
	"github.com/rhuss/tutogate/pkg/transport"
)

// Gate names used as the "gate" metric label.
const (
	gateAuthenticate = "authenticate"
	gateRole         = "role"
	gateOwnership    = "ownership"
	gateRateLimit    = "ratelimit"
)

func recordDecision(gate string, d *Denial) {
	outcome := "granted"
	if d != nil {
		outcome = d.Kind.String()
	}
	observability.GateDecisionsTotal.WithLabelValues(gate, outcome).Inc()
}

// deny logs d, records it and writes the JSON body. When the client has
// already gone away nothing is written.
func deny(w http.ResponseWriter, r *http.Request, logger *slog.Logger, gate string, d *Denial, attrs ...any) {
	if r.Context().Err() != nil {
		logger.Debug("request cancelled during gate",
			"gate", gate,
			"path", r.URL.Path,
			"request_id", transport.RequestIDFromContext(r.Context()),
		)
		return
	}

	recordDecision(gate, d)

	attrs = append(attrs,
		"gate", gate,
		"kind", d.Kind.String(),
		"status", d.Status,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"request_id", transport.RequestIDFromContext(r.Context()),
	)
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}
	logger.Log(r.Context(), denialLevel(d.Kind), "request denied", attrs...)

	WriteDenial(w, d)
}

func denialLevel(k Kind) slog.Level {
	switch k {
	case KindLookupFailure, KindCallerOrderingDefect:
		return slog.LevelError
	case KindNoCredential:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}

// lookupContext derives the context for one store round trip.
func lookupContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
