package auth_test

import (
	"testing"
	"time"

	"github.com/cardbase/authcore/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_Wait(t *testing.T) {
	tests := []struct {
		name       string
		config     auth.TimingConfig
		success    bool
		minElapsed time.Duration
		maxElapsed time.Duration
	}{
		{
			name:       "failure waits at least the base delay",
			config:     auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50},
			success:    false,
			minElapsed: 100 * time.Millisecond,
			maxElapsed: 250 * time.Millisecond,
		},
		{
			name:       "success skips the delay by default",
			config:     auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50},
			success:    true,
			minElapsed: 0,
			maxElapsed: 10 * time.Millisecond,
		},
		{
			name:       "success waits when DelayOnSuccess is set",
			config:     auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50, DelayOnSuccess: true},
			success:    true,
			minElapsed: 100 * time.Millisecond,
			maxElapsed: 250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timing := auth.NewTimingDelay(tt.config)

			start := time.Now()
			timing.Wait(tt.success)
			elapsed := time.Since(start)

			assert.GreaterOrEqual(t, elapsed, tt.minElapsed)
			assert.Less(t, elapsed, tt.maxElapsed)
		})
	}
}

func TestTimingDelay_WaitFrom_CreditsElapsedWork(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})

	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	timing.WaitFrom(start, false)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoExtraWaitPastTarget(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})

	start := time.Now()
	time.Sleep(100 * time.Millisecond)
	timing.WaitFrom(start, false)

	elapsed := time.Since(start)
	assert.Less(t, elapsed, 130*time.Millisecond)
}
