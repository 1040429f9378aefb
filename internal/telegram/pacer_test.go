package telegram

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewPacer_BurstCoercion_AndReuse(t *testing.T) {
	p := newPacer(2.0, 0)
	if p.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", p.burst)
	}
	lim := p.limiter(1)
	if lim == nil {
		t.Fatalf("expected limiter")
	}
	if got := p.limiter(1); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
	if got := p.limiter(2); got == lim {
		t.Fatalf("chats must not share a bucket")
	}
}

func TestPacer_EvictsIdleBuckets(t *testing.T) {
	p := newPacer(1.0, 1)
	p.ttl = time.Nanosecond

	p.mu.Lock()
	p.buckets[-1] = &bucket{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	p.cleanupN = 4999
	p.mu.Unlock()

	_ = p.limiter(7)

	p.mu.Lock()
	_, old := p.buckets[-1]
	_, fresh := p.buckets[7]
	p.mu.Unlock()
	if old {
		t.Fatalf("idle bucket should be evicted")
	}
	if !fresh {
		t.Fatalf("requested bucket should exist")
	}
}

func TestPacer_WaitRespectsBurst(t *testing.T) {
	p := newPacer(0.001, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := p.wait(ctx, 1); err != nil {
			t.Fatalf("wait %d within burst: %v", i, err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := p.wait(ctx, 1); err == nil {
		t.Fatalf("wait beyond burst should fail before the deadline")
	}
}
