package server

import (
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a client's bucket is kept after its last request.
const idleLimiterTTL = 10 * time.Minute

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter holds one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
	now     func() time.Time
	swept   time.Time
}

func newClientLimiter(perMinute, burst int) *clientLimiter {
	return &clientLimiter{
		clients: make(map[string]*clientEntry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// allow takes one token for ip. When none is available it reports how long
// until one will be.
func (l *clientLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.clients[ip]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *clientLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < idleLimiterTTL {
		return
	}
	l.swept = now
	for ip, e := range l.clients {
		if now.Sub(e.lastSeen) > idleLimiterTTL {
			delete(l.clients, ip)
		}
	}
}

func retryAfter(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
