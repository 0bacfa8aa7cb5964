package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the threshold above which queries are logged as warnings.
const slowQuery = 200 * time.Millisecond

// GormLogger routes GORM logs through zerolog.
type GormLogger struct {
	log      zerolog.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger creates a GORM logger writing to log at Warn level.
func NewGormLogger(log zerolog.Logger) *GormLogger {
	return &GormLogger{
		log:      log,
		LogLevel: logger.Warn,
	}
}

// LogMode implements logger.Interface.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info implements logger.Interface.
func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.log.Info().Msg(fmt.Sprintf(msg, data...))
	}
}

// Warn implements logger.Interface.
func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.log.Warn().Msg(fmt.Sprintf(msg, data...))
	}
}

// Error implements logger.Interface.
func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.log.Error().Msg(fmt.Sprintf(msg, data...))
	}
}

// Trace implements logger.Interface.
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed > slowQuery && l.LogLevel >= logger.Warn:
		l.log.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case l.LogLevel == logger.Info:
		l.log.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
	}
}
