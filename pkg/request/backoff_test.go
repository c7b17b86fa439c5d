package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedBackoff freezes time and removes jitter so windows are exact.
func fixedBackoff(base, max time.Duration) (*ProviderBackoff, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewProviderBackoff(base, max)
	b.now = func() time.Time { return now }
	b.jitter = func(time.Duration) time.Duration { return 0 }
	return b, &now
}

func TestExpDelay(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{64, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expDelay(time.Second, 30*time.Second, tt.n), "n=%d", tt.n)
	}
}

func TestProviderBackoff_Window(t *testing.T) {
	b, now := fixedBackoff(time.Second, time.Minute)

	assert.Zero(t, b.Remaining("supabase"))

	b.RecordFailure("supabase")
	b.RecordFailure("supabase")
	fc, until := b.GetState("supabase")
	assert.Equal(t, 2, fc)
	assert.Equal(t, now.Add(2*time.Second), until)
	assert.Equal(t, 2*time.Second, b.Remaining("supabase"))

	*now = now.Add(3 * time.Second)
	assert.Zero(t, b.Remaining("supabase"), "window elapsed")
}

func TestProviderBackoff_Recovery(t *testing.T) {
	b, _ := fixedBackoff(time.Second, time.Minute)
	for range 3 {
		b.RecordFailure("google-maps")
	}

	b.RecordSuccess("google-maps")
	fc, _ := b.GetState("google-maps")
	assert.Equal(t, 2, fc)

	b.RecordSuccess("google-maps")
	b.RecordSuccess("google-maps")
	fc, until := b.GetState("google-maps")
	assert.Zero(t, fc)
	assert.True(t, until.IsZero())
	assert.Zero(t, b.Remaining("google-maps"))

	// Extra successes on a clean provider are harmless.
	b.RecordSuccess("google-maps")
	fc, _ = b.GetState("google-maps")
	assert.Zero(t, fc)
}

func TestProviderBackoff_Isolated(t *testing.T) {
	b, _ := fixedBackoff(time.Second, time.Minute)
	b.RecordFailure("supabase")

	fc, _ := b.GetState("google-maps")
	assert.Zero(t, fc)
	assert.Zero(t, b.Remaining("google-maps"))
	assert.Positive(t, b.Remaining("supabase"))
}

func TestProviderBackoff_JitterBounded(t *testing.T) {
	b := NewProviderBackoff(time.Second, time.Minute)
	b.RecordFailure("supabase")

	d := b.Remaining("supabase")
	assert.Greater(t, d, 900*time.Millisecond)
	assert.LessOrEqual(t, d, 1100*time.Millisecond)
}
