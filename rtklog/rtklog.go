// Package rtklog is the production [rtkernel.Logger] binding: structured
// logging via github.com/joeycumines/logiface backed by
// github.com/rs/zerolog, with per-category rate limiting for the wake-
// reason events (TIMEOUT, BROKEN) that a misbehaving thread can otherwise
// flood the sink with.
package rtklog

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/logiface-zerolog"
	"github.com/joeycumines/go-rtkernel"
	"github.com/rs/zerolog"
)

// throttledCategories names the rtkernel.LogEntry categories whose log
// lines are rate limited rather than suppressed outright; the
// underlying kernel event always happens regardless of whether its log
// line is emitted.
var throttledCategories = map[string]bool{
	"timeout": true,
	"broken":  true,
}

// Logger adapts a logiface.Logger[*izerolog.Event] to [rtkernel.Logger].
type Logger struct {
	base    *logiface.Logger[*izerolog.Event]
	limiter *catrate.Limiter
}

// New builds a Logger writing to w via zerolog at the given minimum
// level, rate limiting throttled categories (see throttledCategories) to
// at most burst events per window.
func New(w zerolog.Logger, level rtkernel.LogLevel, window time.Duration, burst int) *Logger {
	base := logiface.New[*izerolog.Event](
		izerolog.WithZerolog(w),
		logiface.WithLevel[*izerolog.Event](toLogifaceLevel(level)),
	)
	return &Logger{
		base:    base,
		limiter: catrate.NewLimiter(map[time.Duration]int{window: burst}),
	}
}

func toLogifaceLevel(l rtkernel.LogLevel) logiface.Level {
	switch l {
	case rtkernel.LevelDebug:
		return logiface.LevelDebug
	case rtkernel.LevelInfo:
		return logiface.LevelInformational
	case rtkernel.LevelWarn:
		return logiface.LevelWarning
	case rtkernel.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// IsEnabled reports whether level would produce output at all, letting
// hot-path kernel code skip building a [rtkernel.LogEntry] entirely.
func (l *Logger) IsEnabled(level rtkernel.LogLevel) bool {
	return l.base.Level().Enabled() && toLogifaceLevel(level) <= l.base.Level()
}

// Log renders entry through the underlying logiface builder, dropping
// (not suppressing the event, only its log line) anything in a
// throttled category once the category's rate is exceeded.
func (l *Logger) Log(entry rtkernel.LogEntry) {
	if throttledCategories[entry.Category] {
		if _, ok := l.limiter.Allow(entry.Category); !ok {
			return
		}
	}

	b := l.base.Build(toLogifaceLevel(entry.Level))
	if b == nil || !b.Enabled() {
		return
	}
	b = b.Str("category", entry.Category)
	if entry.ThreadID != 0 {
		b = b.Int("thread_id", int(entry.ThreadID))
	}
	if entry.ObjectID != 0 {
		b = b.Int("object_id", int(entry.ObjectID))
	}
	if entry.TimerID != 0 {
		b = b.Int("timer_id", int(entry.TimerID))
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Fields {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}
