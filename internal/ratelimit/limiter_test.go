package ratelimit

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// frozen returns a limiter whose clock only moves when the test advances it.
func frozen(perSecond float64, burst int) (*Limiter, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(perSecond, burst)
	l.nowFunc = func() time.Time { return now }
	return l, &now
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5)
	if l == nil {
		t.Fatal("NewLimiter returned nil")
	}
	if l.limit != rate.Limit(10.0) {
		t.Errorf("limit = %v, want 10", l.limit)
	}
	if l.burst != 5 {
		t.Errorf("burst = %d, want 5", l.burst)
	}
}

func TestAllow_BurstThenReject(t *testing.T) {
	l, _ := frozen(1.0, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.Allow("key1") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_RefillAfterWait(t *testing.T) {
	l, now := frozen(10.0, 2) // 10 tokens/sec

	l.Allow("key1")
	l.Allow("key1")
	if l.Allow("key1") {
		t.Error("expected rejection after burst")
	}

	// 200ms at 10/sec refills two tokens
	*now = now.Add(200 * time.Millisecond)

	if !l.Allow("key1") {
		t.Error("expected allow after token refill")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l, _ := frozen(1.0, 1)

	l.Allow("key1")
	if l.Allow("key1") {
		t.Error("key1 should be exhausted")
	}
	if !l.Allow("key2") {
		t.Error("key2 should be allowed (independent bucket)")
	}
}

func TestAllow_RefillCappedAtBurst(t *testing.T) {
	l, now := frozen(100.0, 3)

	for i := 0; i < 3; i++ {
		l.Allow("key1")
	}

	// Ten seconds would refill 1000 tokens uncapped.
	*now = now.Add(10 * time.Second)

	for i := 0; i < 3; i++ {
		if !l.Allow("key1") {
			t.Errorf("request %d should be allowed after refill capped at burst", i+1)
		}
	}
	if l.Allow("key1") {
		t.Error("4th request should be rejected (burst cap)")
	}
}

func TestAllow_ZeroRate(t *testing.T) {
	l, now := frozen(0.0, 2)

	if !l.Allow("key1") || !l.Allow("key1") {
		t.Error("initial burst should be allowed")
	}

	*now = now.Add(time.Hour)
	if l.Allow("key1") {
		t.Error("should be rejected with zero rate")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l, _ := frozen(1000.0, 100)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("concurrent-key")
		}()
	}

	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}

	// The clock is frozen, so exactly the burst gets through.
	if allowedCount != 100 {
		t.Errorf("allowed %d requests, expected 100 (burst limit)", allowedCount)
	}
}

func TestToolRateLimits(t *testing.T) {
	limiters := NewToolLimiters()

	tests := []struct {
		tool  string
		burst int
	}{
		{"elisa_simulate", 5},
		{"elisa_fit", 10},
		{"elisa_invert", 20},
		{"elisa_cv", 20},
		{"elisa_detection_limits", 10},
		{"elisa_cutoff_classify", 20},
		{"elisa_practice_plate", 20},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			limiter, ok := limiters[tt.tool]
			if !ok {
				t.Fatalf("missing rate limiter for tool: %s", tt.tool)
			}
			if limiter.burst != tt.burst {
				t.Errorf("burst = %d, want %d", limiter.burst, tt.burst)
			}
		})
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"elisa_simulate": NewLimiter(0, 1)}

	if err := CheckLimit(limiters, "elisa_simulate"); err != nil {
		t.Errorf("unexpected error for elisa_simulate: %v", err)
	}

	// Unknown tool should pass (no limiter = no limit)
	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unexpected error for unknown tool: %v", err)
	}

	if err := CheckLimit(limiters, "elisa_simulate"); err == nil {
		t.Error("expected rate limit error after burst exhaustion")
	}
}
