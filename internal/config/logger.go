package config

import (
	"go.uber.org/zap"
)

// Logger is the audit log for admin and bot actions. It wraps zap so the
// rest of the code depends on the small repository.Logger surface only.
type Logger struct {
	zap *zap.Logger
}

func NewLogger() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{zap: z}, nil
}

func (l *Logger) Info(action string, entity string, entityID int64, adminID int64, status string) {
	l.zap.Info(action,
		zap.String("entity", entity),
		zap.Int64("entity_id", entityID),
		zap.Int64("admin_id", adminID),
		zap.String("status", status),
	)
}

func (l *Logger) Error(err error, action string, entity string, entityID int64, adminID int64) {
	l.zap.Error(action,
		zap.String("entity", entity),
		zap.Int64("entity_id", entityID),
		zap.Int64("admin_id", adminID),
		zap.Error(err),
	)
}

// Sugar exposes the free-form logger used by the background workers.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.zap.Sugar()
}

func (l *Logger) Close() {
	_ = l.zap.Sync()
}
