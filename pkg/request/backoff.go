package request

import (
	"math/rand/v2"
	"sync"
	"time"
)

// ProviderBackoff keeps a cool-down window per provider. Each consecutive failure
// doubles the window up to maxDelay; each success pays back one failure.
type ProviderBackoff struct {
	mu      sync.RWMutex
	entries map[string]*cooldown
	base    time.Duration
	max     time.Duration

	now    func() time.Time
	jitter func(time.Duration) time.Duration
}

type cooldown struct {
	failures int
	until    time.Time
}

// NewProviderBackoff creates a backoff tracker with the given window bounds.
func NewProviderBackoff(base, max time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		entries: make(map[string]*cooldown),
		base:    base,
		max:     max,
		now:     time.Now,
		jitter:  tenPercentJitter,
	}
}

// Remaining is how long the next call to provider is held back. Zero means go ahead.
func (b *ProviderBackoff) Remaining(provider string) time.Duration {
	b.mu.RLock()
	c, ok := b.entries[provider]
	var until time.Time
	if ok {
		until = c.until
	}
	b.mu.RUnlock()

	if !ok {
		return 0
	}
	return max(until.Sub(b.now()), 0)
}

func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.entries[provider]
	if c == nil {
		c = &cooldown{}
		b.entries[provider] = c
	}
	c.failures++
	d := expDelay(b.base, b.max, c.failures)
	c.until = b.now().Add(d + b.jitter(d))
}

func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.entries[provider]
	if c == nil {
		return
	}
	if c.failures > 0 {
		c.failures--
	}
	if c.failures == 0 {
		delete(b.entries, provider)
	}
}

// GetState reports the failure count and the end of the cool-down window.
func (b *ProviderBackoff) GetState(provider string) (failures int, until time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if c, ok := b.entries[provider]; ok {
		return c.failures, c.until
	}
	return 0, time.Time{}
}

// expDelay returns base * 2^(n-1), capped at max. n < 1 yields zero.
func expDelay(base, max time.Duration, n int) time.Duration {
	if n < 1 || base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < n; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	return min(d, max)
}

func tenPercentJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)/10 + 1))
}
