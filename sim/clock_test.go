package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFastClockNeverBlocks(t *testing.T) {
	c := NewFastClock()
	assert.Equal(t, 0.0, c.Now())

	start := time.Now()
	c.WaitUntil(context.Background(), 10_000)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	c.Advance(120)
	assert.Equal(t, 120.0, c.Now())

	// Advance never moves backward.
	c.Advance(60)
	assert.Equal(t, 120.0, c.Now())
}

func TestRealTimeClockPaces(t *testing.T) {
	c := NewRealTimeClock(3600) // 3600x real time: one sim-minute == ~16.7ms
	assert.Equal(t, 3600.0, c.SpeedFactor())

	start := time.Now()
	c.WaitUntil(context.Background(), 1) // one sim-minute
	elapsed := time.Since(start)
	assert.Greater(t, elapsed, 5*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestRealTimeClockReturnsImmediatelyForPastTarget(t *testing.T) {
	c := NewRealTimeClock(1)
	c.Advance(0)
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	c.WaitUntil(context.Background(), 0)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestRealTimeClockHonorsCancellation(t *testing.T) {
	c := NewRealTimeClock(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	c.WaitUntil(ctx, 10) // would otherwise pace ~10 real minutes
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestNewRealTimeClockRejectsNonPositiveSpeed(t *testing.T) {
	c := NewRealTimeClock(0)
	assert.Equal(t, 1.0, c.SpeedFactor())
}
