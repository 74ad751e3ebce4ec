package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger with typed fields and an optional collector
// that aggregates repeated errors for shipping to Kafka.
type Logger struct {
	zl          zerolog.Logger
	collector   *LogCollector
	collectWarn bool
}

type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json or console
	Output      string // stdout, stderr or a file path
	TimeFormat  string // defaults to RFC3339Nano
	CollectWarn bool   // also aggregate warnings when a collector is attached
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	// skip emit and the level method so the caller is the user's line
	zl := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(4).Logger()
	return &Logger{zl: zl, collectWarn: cfg.CollectWarn}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying the given fields on every entry.
// The child shares the parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		k, v := f.GetKeyValue()
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector, collectWarn: l.collectWarn}
}

// Component is shorthand for With(String("component", name)).
func (l *Logger) Component(name string) *Logger {
	return l.With(String("component", name))
}

func (l *Logger) addToCollector(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	// addToCollector <- Warn/Error <- caller
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "/Ares/"); i >= 0 {
			file = file[i+len("/Ares"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	kv := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		kv[k] = v
	}
	l.collector.AddLog(level, msg, kv, caller)
}

func (l *Logger) emit(event *zerolog.Event, fields []Field, msg string) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), fields, msg) }

func (l *Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), fields, msg) }

// Warn is aggregated only when the logger was built with CollectWarn.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), fields, msg)
	if l.collectWarn {
		l.addToCollector("warn", msg, fields)
	}
}

// Error is always aggregated when a collector is attached.
func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), fields, msg)
	l.addToCollector("error", msg, fields)
}

// AddCollector attaches a collector, replacing any previous one. Loggers
// derived with With before this call do not see it.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value pair.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindStrings
	kindInt
	kindInt64
	kindFloat
	kindBool
	kindError
	kindAny
)

type field struct {
	key  string
	kind fieldKind
	val  interface{}
}

func (f field) AddTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.val.(string))
	case kindStrings:
		e.Strs(f.key, f.val.([]string))
	case kindInt:
		e.Int(f.key, f.val.(int))
	case kindInt64:
		e.Int64(f.key, f.val.(int64))
	case kindFloat:
		e.Float64(f.key, f.val.(float64))
	case kindBool:
		e.Bool(f.key, f.val.(bool))
	case kindError:
		if err, _ := f.val.(error); err != nil {
			e.AnErr(f.key, err)
		}
	default:
		e.Interface(f.key, f.val)
	}
}

// GetKeyValue returns the value as the collector stores it. Errors become
// their message.
func (f field) GetKeyValue() (string, interface{}) {
	if f.kind == kindError {
		if err, _ := f.val.(error); err != nil {
			return f.key, err.Error()
		}
		return f.key, nil
	}
	return f.key, f.val
}

func String(key, value string) Field { return field{key, kindString, value} }

func Strings(key string, value []string) Field { return field{key, kindStrings, value} }

func Int(key string, value int) Field { return field{key, kindInt, value} }

func Int64(key string, value int64) Field { return field{key, kindInt64, value} }

func Float(key string, value float64) Field { return field{key, kindFloat, value} }

func Bool(key string, value bool) Field { return field{key, kindBool, value} }

func Error(err error) Field { return field{"error", kindError, err} }

func Any(key string, value interface{}) Field { return field{key, kindAny, value} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return field{key, kindInt64, value.Milliseconds()}
}
