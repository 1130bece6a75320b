package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

var zerologLevel = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

type Entry struct {
	TimeStamp time.Time              `json:"timestamp"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ring is the buffer shared by a logger and every child derived with With.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
}

type Logger struct {
	ring   *ring
	level  Level
	zl     zerolog.Logger
	fields map[string]interface{}
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
// maxsize:maximum number of log entries kept in memory
//
// Entries are kept in memory only; use NewLoggerWithOutput to also emit them.
func NewLogger(maxSize int, level Level) *Logger {
	return NewLoggerWithOutput(maxSize, level, nil)
}

// NewLoggerWithOutput also writes every accepted entry to out through
// zerolog. Write errors on out are ignored.
func NewLoggerWithOutput(maxSize int, level Level, out io.Writer) *Logger {
	zl := zerolog.Nop()
	if out != nil {
		zl = zerolog.New(out).With().Timestamp().Logger()
	}
	return &Logger{
		ring: &ring{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
		},
		level: level,
		zl:    zl,
	}
}

// ConsoleWriter is a human readable zerolog writer for terminals.
func ConsoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05.000"}
}

// With returns a child logger that attaches keyvals to every entry. The
// child shares the parent's buffer and level.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+len(keyvals)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range pairs(keyvals) {
		fields[k] = v
	}
	return &Logger{
		ring:   l.ring,
		level:  l.level,
		zl:     l.zl.With().Fields(fields).Logger(),
		fields: fields,
	}
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string, keyvals []interface{}) {
	//filter logs below the current level
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	extra := pairs(keyvals)
	l.zl.WithLevel(zerologLevel[level]).Fields(extra).Msg(msg)

	var fields map[string]interface{}
	if len(l.fields)+len(extra) > 0 {
		fields = make(map[string]interface{}, len(l.fields)+len(extra))
		for k, v := range l.fields {
			fields[k] = v
		}
		for k, v := range extra {
			fields[k] = v
		}
	}

	l.ring.push(Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	})
}

func (r *ring) push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize <= 0 {
		return
	}
	if len(r.entries) >= r.maxSize {
		//remove oldest entry(ring behavior)
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, e)
}

// pairs turns alternating key/value arguments into a map. A trailing key
// without a value is recorded with a nil value.
func pairs(keyvals []interface{}) map[string]interface{} {
	if len(keyvals) == 0 {
		return nil
	}
	out := make(map[string]interface{}, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var val interface{}
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		out[key] = val
	}
	return out
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(DEBUG, msg, keyvals)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(INFO, msg, keyvals)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(WARN, msg, keyvals)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(ERROR, msg, keyvals)
}

func (l *Logger) GetLast(n int) []Entry {
	l.ring.mu.Lock()
	defer l.ring.mu.Unlock()

	entries := l.ring.entries
	if n > len(entries) {
		n = len(entries)
	}

	start := len(entries) - n
	out := make([]Entry, n)
	copy(out, entries[start:])
	return out
}
