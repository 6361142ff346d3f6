package host

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the number of commands a sender may issue per
	// minute when no explicit limit is configured.
	DefaultRateLimit = 30

	// idle senders are forgotten after this long.
	limiterIdleTTL = 10 * time.Minute
)

// senderLimiter is a per-sender token bucket. A sender may burst up to the
// per-minute limit and then refills at limit/minute.
//
// senderLimiter is safe for concurrent use.
type senderLimiter struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	senders  map[string]*senderEntry
	lastScan time.Time
	now      func() time.Time
}

type senderEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// newSenderLimiter returns nil when perMinute is negative or zero, which
// disables limiting.
func newSenderLimiter(perMinute int, now func() time.Time) *senderLimiter {
	if perMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &senderLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		senders: make(map[string]*senderEntry),
		now:     now,
	}
}

// Allow reports whether senderID may issue another command now and spends a
// token if so. A nil limiter allows everything.
func (l *senderLimiter) Allow(senderID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastScan) > limiterIdleTTL {
		for id, e := range l.senders {
			if now.Sub(e.seen) > limiterIdleTTL {
				delete(l.senders, id)
			}
		}
		l.lastScan = now
	}

	e, ok := l.senders[senderID]
	if !ok {
		e = &senderEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.senders[senderID] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}
