// Package audit records security-relevant actions (logins, account changes,
// authorization denials) as structured log entries.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
)

type ctxKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the identifier stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// LogEvent writes one audit entry enriched with the request id and the
// authenticated user, when present.
func LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	entry := make([]zap.Field, 0, len(fields)+4)
	entry = append(entry, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestID(ctx); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		entry = append(entry, zap.String("user_id", p.ID()), zap.Strings("roles", p.RoleNames()))
	}
	entry = append(entry, fields...)
	obs.From(ctx).Info("audit", entry...)
	return nil
}
