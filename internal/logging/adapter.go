package logging

import (
	"context"

	"go.uber.org/zap"

	"foodwaste/internal/core"
)

// coreLogger adapts a sugared zap logger to core.Logger.
type coreLogger struct {
	sugar *zap.SugaredLogger
}

// NewCoreLogger wraps logger for use as a core.Logger. Key/value arguments
// become structured fields.
func NewCoreLogger(logger *zap.Logger) core.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return coreLogger{sugar: logger.Sugar()}
}

func (l coreLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l coreLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l coreLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l coreLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// AuditRecorder writes listing mutation audit entries as structured log
// lines under the "audit" logger name.
type AuditRecorder struct {
	logger *zap.Logger
}

// NewAuditRecorder returns a recorder logging through logger.
func NewAuditRecorder(logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{logger: logger.Named("audit")}
}

// Record implements core.AuditRecorder.
func (r *AuditRecorder) Record(_ context.Context, entry core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", string(entry.Status)),
		zap.Duration("duration", entry.Duration),
		zap.Time("occurred_at", entry.OccurredAt),
	}
	if entry.EntityID != 0 {
		fields = append(fields, zap.Int64("food_id", entry.EntityID))
	}
	if entry.Status == core.AuditStatusError {
		fields = append(fields, zap.String("error", entry.Error))
		r.logger.Warn("listing mutation failed", fields...)
		return
	}
	r.logger.Info("listing mutation", fields...)
}
