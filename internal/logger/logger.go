// Package logger provides the process-wide structured logger every stage's
// log side channel (spec §4.4) writes through. It wraps
// github.com/rs/zerolog rather than the standard library, matching the
// rest of the reference corpus's logging choice, and carries forward the
// teacher's redaction idiom so secret-shaped parameter values never reach
// stdout/stderr or a startup config dump.
package logger

import (
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level is one of the five verbosity levels the CLI's -v flag accepts.
type Level string

const (
	LevelNone    Level = "none"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelDebug   Level = "debug"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelNone:
		return zerolog.Disabled
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	mu     sync.RWMutex
	base   = zerolog.New(os.Stderr).With().Timestamp().Logger()
	active = LevelInfo
)

func init() {
	base = base.Level(active.zerolog())
}

// SetLevel reconfigures the process-wide logger's minimum level.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	active = level
	base = base.Level(level.zerolog())
}

// CurrentLevel returns the active level, chiefly so callers can skip
// building expensive debug-only fields.
func CurrentLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// redactionPattern matches parameter/field names the spec requires to be
// masked before they reach a log line or a startup status/config dump.
var redactionPattern = regexp.MustCompile(`(?i)key|secret|token|password`)

// Redact replaces value with a fixed placeholder if name looks like it
// holds a secret; otherwise it returns value unchanged.
func Redact(name string, value any) any {
	if redactionPattern.MatchString(name) {
		return "[REDACTED]"
	}
	return value
}

// RedactMap returns a shallow copy of m with every secret-shaped key
// redacted, for attaching a whole parameter set to a single log field.
func RedactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Redact(k, v)
	}
	return out
}

// Stage returns a logger tagged with stage=id, the side channel every
// Stage implementation uses to emit log(level, msg, data) events (spec
// §4.4).
func Stage(id string) *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base.With().Str("stage", id).Logger()
	return &l
}

// Base returns the process-wide logger untagged with any stage id, for
// callers outside the stage/graph machinery (e.g. the event bus) that still
// want the same structured sink and level filtering.
func Base() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &base
}

// Fatal logs the single error-level line a fatal shutdown path must emit
// (spec §7): the offending stage id and the error that caused it. At debug
// level it additionally attaches a short synthetic stack field.
func Fatal(stageID string, err error) {
	mu.RLock()
	level := active
	mu.RUnlock()

	evt := base.Error().Str("stage", stageID).Err(err)
	if level == LevelDebug {
		evt = evt.Str("stack", shortStack())
	}
	evt.Msg("fatal")
}

func shortStack() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		if !more {
			break
		}
		sb.WriteString(" <- ")
	}
	return sb.String()
}
