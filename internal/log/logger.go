// Package log is the leveled key/value logger shared by the analysis
// pipeline and the CLI. Text lines go to stderr by default; JSON lines are
// available for machine consumption.
package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	// silentLevel is above every level a message can carry.
	silentLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	}
	return "UNKNOWN"
}

var levelColors = map[Level]string{
	DebugLevel: "\033[36m",
	InfoLevel:  "\033[32m",
	WarnLevel:  "\033[33m",
}

// Logger is what the pipeline logs through. With returns a logger that adds
// the given key/value pairs to every message, e.g. the module being analyzed.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Options configures a logger.
type Options struct {
	Level  Level
	JSON   bool
	Output io.Writer
	// Colors enables ANSI colors in text output.
	Colors bool
}

// sink is the shared destination of a logger and everything derived from it.
type sink struct {
	mu   sync.Mutex
	out  io.Writer
	now  func() time.Time
	opts Options
}

// DefaultLogger writes text or JSON lines to one destination.
type DefaultLogger struct {
	sink   *sink
	fields []any
}

// New creates a logger; a nil Output means stderr.
func New(opts Options) *DefaultLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &DefaultLogger{sink: &sink{out: out, now: time.Now, opts: opts}}
}

// Default returns an info-level text logger on stderr, colored when stderr is
// a terminal.
func Default() *DefaultLogger {
	return New(Options{Level: InfoLevel, Colors: ColorsEnabled()})
}

// Discard returns a logger that drops everything.
func Discard() *DefaultLogger {
	return New(Options{Level: silentLevel, Output: io.Discard})
}

// OrDefault returns l, or Default when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}

// ColorsEnabled reports whether stderr is a terminal and NO_COLOR is unset.
func ColorsEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (l *DefaultLogger) Debug(msg string, args ...any) { l.log(DebugLevel, msg, args) }

func (l *DefaultLogger) Info(msg string, args ...any) { l.log(InfoLevel, msg, args) }

func (l *DefaultLogger) Warn(msg string, args ...any) { l.log(WarnLevel, msg, args) }

func (l *DefaultLogger) With(args ...any) Logger {
	fields := make([]any, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, pairs(args)...)
	return &DefaultLogger{sink: l.sink, fields: fields}
}

func (l *DefaultLogger) log(level Level, msg string, args []any) {
	s := l.sink
	if level < s.opts.Level {
		return
	}
	kv := append(append([]any(nil), l.fields...), pairs(args)...)

	var line []byte
	if s.opts.JSON {
		line = jsonLine(s.now(), level, msg, kv)
	} else {
		line = textLine(s.now(), level, msg, kv, s.opts.Colors)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(line)
}

// pairs drops a leading unpaired value by folding it into an "arg" key and
// skips pairs whose key is not a string.
func pairs(args []any) []any {
	if len(args)%2 != 0 {
		args = append([]any{"arg"}, args...)
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			out = append(out, key, args[i+1])
		}
	}
	return out
}

func textLine(t time.Time, level Level, msg string, kv []any, colors bool) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %s: ", t.Format("2006-01-02 15:04:05"), level)
	if colors {
		b.WriteString(levelColors[level])
	}
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		fmt.Fprintf(&b, " %s=%v", kv[i], kv[i+1])
	}
	if colors {
		b.WriteString("\033[0m")
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// jsonLine keeps keys in the order they were logged.
func jsonLine(t time.Time, level Level, msg string, kv []any) []byte {
	var b bytes.Buffer
	b.WriteByte('{')
	writeJSONField(&b, "timestamp", t.Format(time.RFC3339), true)
	writeJSONField(&b, "level", level.String(), false)
	writeJSONField(&b, "message", msg, false)
	for i := 0; i < len(kv); i += 2 {
		v := kv[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		writeJSONField(&b, kv[i].(string), v, false)
	}
	b.WriteString("}\n")
	return b.Bytes()
}

func writeJSONField(b *bytes.Buffer, key string, v any, first bool) {
	if !first {
		b.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	b.Write(k)
	b.WriteByte(':')
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	b.Write(data)
}
