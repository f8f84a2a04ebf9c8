package partybus

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const loggerNameKey = "logger"

var discordGoLogLevels = map[int]slog.Level{
	discordgo.LogDebug:         slog.LevelDebug,
	discordgo.LogError:         slog.LevelError,
	discordgo.LogWarning:       slog.LevelWarn,
	discordgo.LogInformational: slog.LevelInfo,
}

// discordgoLoggerFunc returns a function suitable for discordgo.Logger,
// which routes discordgo's printf-style output to the given handler.
func discordgoLoggerFunc(ctx context.Context, handler slog.Handler) func(
	msgL int,
	caller int,
	format string,
	args ...any,
) {
	log := slog.New(handler)
	return func(msgL int, _ int, format string, args ...any) {
		level, ok := discordGoLogLevels[msgL]
		if !ok {
			level = slog.LevelInfo
		}
		log.Log(ctx, level, strings.TrimSpace(fmt.Sprintf(format, args...)))
	}
}

var (
	DBLogLevelInfo  = DBLogLevel(slog.LevelInfo.String())
	DBLogLevelWarn  = DBLogLevel(slog.LevelWarn.String())
	DBLogLevelError = DBLogLevel(slog.LevelError.String())
	DBLogLevelDebug = DBLogLevel(slog.LevelDebug.String())

	dbLogLevels = map[DBLogLevel]slog.Level{
		DBLogLevelDebug: slog.LevelDebug,
		DBLogLevelInfo:  slog.LevelInfo,
		DBLogLevelWarn:  slog.LevelWarn,
		DBLogLevelError: slog.LevelError,
	}
)

// DBLogLevel is a slog level name stored in the database, so log levels
// can be changed at runtime via RuntimeConfig.
type DBLogLevel string

// Scan implements the sql.Scanner interface.
func (l *DBLogLevel) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return l.Set(string(v))
	case string:
		return l.Set(v)
	default:
		return fmt.Errorf("invalid type for DBLogLevel: %T", value)
	}
}

// Value implements the driver.Valuer interface.
func (l DBLogLevel) Value() (driver.Value, error) {
	return l.String(), nil
}

func (DBLogLevel) GormDataType() string {
	return "string"
}

func (l DBLogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *DBLogLevel) UnmarshalJSON(data []byte) error {
	var levelString string
	if err := json.Unmarshal(data, &levelString); err != nil {
		return err
	}
	return l.Set(levelString)
}

func (l DBLogLevel) String() string {
	return string(l)
}

// Set parses a level name, ignoring case
func (l *DBLogLevel) Set(s string) error {
	level := DBLogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dbLogLevels[level]; !ok {
		return fmt.Errorf("unknown log level: %s", s)
	}
	*l = level
	return nil
}

// Level returns the underlying slog.Level value. Unknown values
// are reported and treated as INFO.
func (l DBLogLevel) Level() slog.Level {
	level, ok := dbLogLevels[DBLogLevel(strings.ToUpper(string(l)))]
	if !ok {
		slog.Default().Error("unknown log level", "level", string(l))
		return slog.LevelInfo
	}
	return level
}

// gormStructuredLogger implements gorm's logger.Interface on top of slog
type gormStructuredLogger struct {
	logger        *slog.Logger
	handler       slog.Handler
	SlowThreshold time.Duration
}

func newGORMLogger(
	handler slog.Handler,
	slowThreshold time.Duration,
) *gormStructuredLogger {
	return &gormStructuredLogger{
		logger:        slog.New(handler).With(loggerNameKey, "gorm"),
		handler:       handler,
		SlowThreshold: slowThreshold,
	}
}

// LogMode is a no-op, as levels are controlled by the handler's LevelVar
func (g gormStructuredLogger) LogMode(_ logger.LogLevel) logger.Interface {
	return g
}

func (g gormStructuredLogger) Info(ctx context.Context, s string, i ...any) {
	g.logger.InfoContext(ctx, fmt.Sprintf(s, i...))
}

func (g gormStructuredLogger) Warn(ctx context.Context, s string, i ...any) {
	g.logger.WarnContext(ctx, fmt.Sprintf(s, i...))
}

func (g gormStructuredLogger) Error(ctx context.Context, s string, i ...any) {
	g.logger.ErrorContext(ctx, fmt.Sprintf(s, i...))
}

// Trace logs each statement at DEBUG. Statements slower than
// SlowThreshold are logged at WARN, and failed statements at ERROR.
// gorm.ErrRecordNotFound isn't treated as a failure, since lookups
// that find nothing are expected.
func (g gormStructuredLogger) Trace(
	ctx context.Context,
	begin time.Time,
	fc func() (sql string, rowsAffected int64),
	err error,
) {
	elapsed := time.Since(begin)
	statement, rowsAffected := fc()

	var rows any = rowsAffected
	if rowsAffected == -1 {
		rows = "-"
	}
	attrs := []any{
		"elapsed", elapsed,
		"rows", rows,
		"sql", statement,
	}
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if failed {
		attrs = append(attrs, tint.Err(err))
	}

	switch {
	case g.SlowThreshold != 0 && elapsed > g.SlowThreshold:
		g.logger.WarnContext(ctx, "slow sql", append(attrs, "threshold", g.SlowThreshold)...)
	case failed:
		g.logger.ErrorContext(ctx, "sql error", attrs...)
	default:
		g.logger.DebugContext(ctx, "sql completed", attrs...)
	}
}
