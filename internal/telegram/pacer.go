package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket holds one chat's limiter and the last time it was used, so idle
// chats can be evicted.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// pacer spaces outbound messages per chat with token buckets. Buckets are
// created on demand; idle ones are dropped during lookups after a TTL.
//
// Safe for concurrent use.
type pacer struct {
	rps     rate.Limit
	burst   int
	mu      sync.Mutex
	buckets map[int64]*bucket

	ttl      time.Duration
	cleanupN uint64
}

// newPacer returns a pacer allowing rps messages per second per chat with the
// given burst. burst values <= 0 are coerced to 1.
func newPacer(rps float64, burst int) *pacer {
	if burst <= 0 {
		burst = 1
	}
	return &pacer{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[int64]*bucket),
		ttl:     10 * time.Minute,
	}
}

// limiter returns the bucket for chatID, creating it if absent. Every 5000
// lookups idle buckets are evicted first, so a stale bucket is not refreshed
// by the lookup that should drop it.
func (p *pacer) limiter(chatID int64) *rate.Limiter {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleanupN++
	if p.cleanupN >= 5000 {
		for id, b := range p.buckets {
			if now.Sub(b.lastSeen) >= p.ttl {
				delete(p.buckets, id)
			}
		}
		p.cleanupN = 0
	}

	if b, ok := p.buckets[chatID]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(p.rps, p.burst)
	p.buckets[chatID] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// wait blocks until chatID may send, or ctx is done.
func (p *pacer) wait(ctx context.Context, chatID int64) error {
	return p.limiter(chatID).Wait(ctx)
}
