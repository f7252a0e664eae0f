package assethat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// rateLimitedLogger emits at most one warning per key per interval.
type rateLimitedLogger struct {
	mu       sync.Mutex
	lastAt   map[string]time.Time
	interval time.Duration
	log      zerolog.Logger
}

func newRateLimitedLogger(log zerolog.Logger, interval time.Duration) *rateLimitedLogger {
	return &rateLimitedLogger{log: log, interval: interval, lastAt: map[string]time.Time{}}
}

func (l *rateLimitedLogger) Warn(key string, fill func(e *zerolog.Event), msg string) {
	l.mu.Lock()
	now := time.Now()
	last, seen := l.lastAt[key]
	if seen && now.Sub(last) < l.interval {
		l.mu.Unlock()
		return
	}
	l.lastAt[key] = now
	l.mu.Unlock()

	e := l.log.Warn()
	if fill != nil {
		fill(e)
	}
	e.Msg(msg)
}

func (l *rateLimitedLogger) reset() {
	l.mu.Lock()
	l.lastAt = map[string]time.Time{}
	l.mu.Unlock()
}
