package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Delay(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{7, time.Minute},
		{500, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.failures), "failures=%d", tt.failures)
	}
}

func TestBackoff_FailureAddsJitter(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)

	for i := 1; i <= 3; i++ {
		d := b.Failure("edge-tts")
		base := b.Delay(i)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/10)
	}

	failures, until := b.State("edge-tts")
	assert.Equal(t, 3, failures)
	assert.WithinDuration(t, time.Now().Add(4*time.Second), until, 600*time.Millisecond)
}

func TestBackoff_GradualRecovery(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Failure("server")
	b.Failure("server")

	b.Success("server")
	failures, until := b.State("server")
	assert.Equal(t, 1, failures)
	assert.False(t, until.IsZero())

	b.Success("server")
	failures, until = b.State("server")
	assert.Zero(t, failures)
	assert.True(t, until.IsZero())

	// unknown upstream is a no-op
	b.Success("other")
}

func TestBackoff_IsolatedUpstreams(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Failure("localhost:8080")
	b.Failure("localhost:8080")

	first, _ := b.State("localhost:8080")
	second, _ := b.State("pa.station.local")
	assert.Equal(t, 2, first)
	assert.Zero(t, second)
}

func TestBackoff_WaitHonoursContext(t *testing.T) {
	b := NewBackoff(10*time.Second, time.Minute)

	assert.NoError(t, b.Wait(context.Background(), "fresh"))

	b.Failure("slow")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.ErrorIs(t, b.Wait(ctx, "slow"), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
