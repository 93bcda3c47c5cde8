// Package log is the structured logging layer of salesforecast, built on zerolog.
//
// Two styles are offered. GetLogger returns the process zerolog.Logger for chained
// events:
//
//	log.GetLogger().Error().Err(err).Int("store", 262).Msg("prediction failed")
//
// GetLoggerWithName returns a component Logger taking key/value pairs, which is what
// the pipeline stages and services hold:
//
//	logger := log.GetLoggerWithName("Pipeline")
//	logger.Info("batch predicted", "rows", 48, "elapsed_ms", 3)
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled key/value logger bound to a component.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider creates component loggers sharing one output and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level zerolog.Level)
}

var (
	mu       sync.RWMutex
	base     = zerolog.New(os.Stderr).With().Timestamp().Logger()
	provider LoggerProvider
)

// SetupLogger configures the process logger to write JSON lines to stderr at level.
func SetupLogger(level string) {
	SetupLoggerWithWriter(level, os.Stderr, false)
}

// SetupLoggerWithWriter configures the process logger with an explicit writer.
// pretty switches to zerolog's human-readable console output.
func SetupLoggerWithWriter(level string, w io.Writer, pretty bool) {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl := ToLogLevel(level)

	mu.Lock()
	defer mu.Unlock()
	zerolog.SetGlobalLevel(lvl)
	base = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	provider = &zerologProvider{root: base}
}

// ToLogLevel parses a level name; unknown names fall back to info.
func ToLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// GetLogger returns the process zerolog logger.
func GetLogger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// GetLoggerWithName returns a component logger tagged with name.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	p := provider
	mu.RUnlock()
	if p == nil {
		return (&zerologProvider{root: *GetLogger()}).GetLoggerWithName(name)
	}
	return p.GetLoggerWithName(name)
}

// LogError writes err at error level. At debug level the full cause chain with stack
// traces is attached as "detail".
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	l := GetLogger()
	ev := l.Error().Err(err)
	if l.GetLevel() <= zerolog.DebugLevel {
		ev = ev.Str("detail", fmt.Sprintf("%+v", err))
	}
	ev.Msg(msg)
}

// NewZerologProvider creates a provider writing JSON lines to stderr.
func NewZerologProvider(level zerolog.Level) LoggerProvider {
	return &zerologProvider{root: zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()}
}

// NewWriterProvider creates a provider writing to w; used by tests capturing output.
func NewWriterProvider(w io.Writer, level zerolog.Level) LoggerProvider {
	return &zerologProvider{root: zerolog.New(w).Level(level)}
}

type zerologProvider struct {
	root zerolog.Logger
}

func (p *zerologProvider) GetLogger() Logger {
	return &zerologLogger{l: p.root}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.root.With().Str("component", name).Logger()}
}

func (p *zerologProvider) SetLevel(level zerolog.Level) {
	p.root = p.root.Level(level)
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, fields ...interface{}) {
	z.l.Debug().Fields(normalize(fields)).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...interface{}) {
	z.l.Info().Fields(normalize(fields)).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...interface{}) {
	z.l.Warn().Fields(normalize(fields)).Msg(msg)
}

func (z *zerologLogger) Error(msg string, fields ...interface{}) {
	z.l.Error().Fields(normalize(fields)).Msg(msg)
}

func (z *zerologLogger) With(fields ...interface{}) Logger {
	return &zerologLogger{l: z.l.With().Fields(normalize(fields)).Logger()}
}

// normalize turns an odd trailing key into a "!BADKEY" pair and stringifies
// non-string keys so zerolog never drops a field silently.
func normalize(fields []interface{}) []interface{} {
	if len(fields) == 0 {
		return fields
	}
	out := make([]interface{}, 0, len(fields)+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			out = append(out, "!BADKEY", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		out = append(out, key, fields[i+1])
	}
	return out
}
