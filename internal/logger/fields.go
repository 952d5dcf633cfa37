package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// Field names shared by every gateway call
const (
	FieldOperation = "operation"
	FieldTenantID  = "tenant_id"
	FieldCallID    = "call_id"
)

// maxPayloadLog bounds raw payloads attached to parse failures
const maxPayloadLog = 2048

// WithContext returns a new context with the logger attached. Gateway calls
// made with that context log through it, so caller fields such as a request
// id appear next to the call fields.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or fallback when none is
// attached
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// ForCall returns a child logger carrying the call-scoped fields
func ForCall(logger *zap.Logger, operation, tenantID, callID string) *zap.Logger {
	return logger.With(
		zap.String(FieldOperation, operation),
		zap.String(FieldTenantID, tenantID),
		zap.String(FieldCallID, callID),
	)
}

// Payload renders a raw wire payload truncated for logging
func Payload(key string, raw []byte) zap.Field {
	if len(raw) <= maxPayloadLog {
		return zap.ByteString(key, raw)
	}
	return zap.ByteString(key, append(raw[:maxPayloadLog:maxPayloadLog], "...(truncated)"...))
}
