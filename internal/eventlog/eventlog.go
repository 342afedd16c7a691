package eventlog

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/retailops/goldpipe/internal/logger"
	"github.com/retailops/goldpipe/internal/utils"
)

// Event level strings as stored in ops.pipeline_logs
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Event is one structured pipeline log record. Append-only: events are
// never mutated or deleted by the pipeline itself.
type Event struct {
	Timestamp time.Time
	Level     string
	Message   string
	Logger    string
	Pipeline  string
	RunID     string
	Module    string
	Function  string
	Line      int
	Metadata  map[string]any
}

// Sink persists events. Implementations must be safe for sequential reuse;
// the pipeline is single-threaded.
type Sink interface {
	WriteEvent(ctx context.Context, e *Event) error
}

// How long a repeated sink failure stays quiet on the console after being
// warned about once.
const sinkWarnTTL = 30 * time.Second

const sinkWarnCacheSize = 64

// Logger mirrors every event to a console slog logger and writes it to
// the sink synchronously. Sink failures never fail the caller: the event
// still reaches the console, and the failure itself is warned about at
// most once per sinkWarnTTL so a store outage cannot flood stderr.
//
// A nil sink is valid and means console only (dry runs, initdb, tests).
type Logger struct {
	console  *slog.Logger
	sink     Sink
	name     string
	pipeline string
	runID    string

	// Keyed by sink error text; value is when it was last warned about.
	sinkWarns *lru.Cache[string, time.Time]
}

// New creates an event logger. name tags the logger column of persisted
// events; pipeline is the pipeline_name every event carries.
func New(console *slog.Logger, sink Sink, name, pipeline string) *Logger {
	// Only errors on size <= 0
	warns, _ := lru.New[string, time.Time](sinkWarnCacheSize)

	return &Logger{
		console:   console,
		sink:      sink,
		name:      name,
		pipeline:  pipeline,
		sinkWarns: warns,
	}
}

// ForRun returns a copy of the logger whose events carry runID. Run
// identity stays an explicit value; there is no process-global run state.
func (l *Logger) ForRun(runID string) *Logger {
	scoped := *l
	scoped.runID = runID
	return &scoped
}

// Console returns the underlying slog logger for components that want
// plain console logging with the same destination.
func (l *Logger) Console() *slog.Logger {
	return l.console
}

func (l *Logger) Debug(ctx context.Context, msg string, metadata map[string]any) {
	l.emit(ctx, LevelDebug, slog.LevelDebug, msg, metadata)
}

func (l *Logger) Info(ctx context.Context, msg string, metadata map[string]any) {
	l.emit(ctx, LevelInfo, slog.LevelInfo, msg, metadata)
}

func (l *Logger) Warning(ctx context.Context, msg string, metadata map[string]any) {
	l.emit(ctx, LevelWarning, slog.LevelWarn, msg, metadata)
}

func (l *Logger) Error(ctx context.Context, msg string, metadata map[string]any) {
	l.emit(ctx, LevelError, slog.LevelError, msg, metadata)
}

func (l *Logger) Critical(ctx context.Context, msg string, metadata map[string]any) {
	l.emit(ctx, LevelCritical, logger.LevelCritical, msg, metadata)
}

func (l *Logger) emit(ctx context.Context, level string, slogLevel slog.Level, msg string, metadata map[string]any) {
	e := &Event{
		Timestamp: utils.NowUTC(),
		Level:     level,
		Message:   msg,
		Logger:    l.name,
		Pipeline:  l.pipeline,
		RunID:     l.runID,
		Metadata:  metadata,
	}
	e.Module, e.Function, e.Line = callerLocation()

	l.mirror(ctx, slogLevel, msg, metadata)

	if l.sink == nil {
		return
	}
	if err := l.sink.WriteEvent(ctx, e); err != nil {
		l.warnSinkFailure(err)
	}
}

// mirror renders the event on the console with stable attribute order
func (l *Logger) mirror(ctx context.Context, level slog.Level, msg string, metadata map[string]any) {
	args := make([]any, 0, 2*(len(metadata)+2))
	args = append(args, "pipeline", l.pipeline)
	if l.runID != "" {
		args = append(args, "run_id", l.runID)
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, metadata[k])
	}

	l.console.Log(ctx, level, msg, args...)
}

func (l *Logger) warnSinkFailure(err error) {
	key := err.Error()
	if last, ok := l.sinkWarns.Get(key); ok && time.Since(last) < sinkWarnTTL {
		return
	}
	l.sinkWarns.Add(key, time.Now())

	l.console.Warn("Event sink write failed",
		"error", err,
		"pipeline", l.pipeline,
	)
}

// callerLocation resolves the emitting call site, best-effort. Zero
// values mean the lookup failed.
func callerLocation() (module, function string, line int) {
	// 0 = callerLocation, 1 = emit, 2 = level method, 3 = caller
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "", "", 0
	}

	module = strings.TrimSuffix(filepath.Base(file), ".go")

	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
		if idx := strings.LastIndex(function, "/"); idx >= 0 {
			function = function[idx+1:]
		}
	}

	return module, function, line
}
