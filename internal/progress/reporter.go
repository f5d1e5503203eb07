package progress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Reporter receives progress for one unit of work. Percent is relative to that unit (0-100).
type Reporter interface {
	Report(step string, percent int, message string)
}

type ReporterFunc func(step string, percent int, message string)

func (f ReporterFunc) Report(step string, percent int, message string) {
	f(step, percent, message)
}

// Discard drops every report.
var Discard Reporter = ReporterFunc(func(string, int, string) {})

// Scale maps a child's 0-100 range onto [lo, hi] of the parent.
func Scale(parent Reporter, lo, hi int) Reporter {
	if parent == nil {
		return Discard
	}
	lo, hi = clamp(lo), clamp(hi)
	if hi < lo {
		lo, hi = hi, lo
	}
	return ReporterFunc(func(step string, percent int, message string) {
		parent.Report(step, lo+(hi-lo)*clamp(percent)/100, message)
	})
}

// Throttle forwards at most one report per interval. Step changes and
// reports at 100 percent always pass so the final state is never dropped.
func Throttle(next Reporter, interval time.Duration) Reporter {
	if next == nil {
		return Discard
	}
	if interval <= 0 {
		return next
	}
	t := &throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
	return t
}

type throttled struct {
	mu       sync.Mutex
	next     Reporter
	limiter  *rate.Limiter
	lastStep string
}

func (t *throttled) Report(step string, percent int, message string) {
	t.mu.Lock()
	pass := step != t.lastStep || percent >= 100
	if pass {
		// keep the bucket in step with forced reports
		t.limiter.Allow()
	} else {
		pass = t.limiter.Allow()
	}
	if pass {
		t.lastStep = step
	}
	t.mu.Unlock()

	if pass {
		t.next.Report(step, percent, message)
	}
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
