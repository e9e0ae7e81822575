package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/clinicauth/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestLatencySimulator_Wait(t *testing.T) {
	latency := auth.NewLatencySimulator(auth.LatencyConfig{BaseDelayMs: 50, RandomDelayMs: 20})
	startTime := time.Now()

	err := latency.Wait(context.Background())

	elapsed := time.Since(startTime)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestLatencySimulator_ZeroConfigDoesNotSleep(t *testing.T) {
	latency := auth.NewLatencySimulator(auth.LatencyConfig{})
	startTime := time.Now()

	assert.NoError(t, latency.Wait(context.Background()))
	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}

func TestLatencySimulator_NilIsNoop(t *testing.T) {
	var latency *auth.LatencySimulator
	assert.NoError(t, latency.Wait(context.Background()))
}

func TestLatencySimulator_ContextCancelled(t *testing.T) {
	latency := auth.NewLatencySimulator(auth.LatencyConfig{BaseDelayMs: 5000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	startTime := time.Now()
	err := latency.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(startTime), 100*time.Millisecond)
}

func TestLatencySimulator_DelayWithinRange(t *testing.T) {
	latency := auth.NewLatencySimulator(auth.LatencyConfig{BaseDelayMs: 100, RandomDelayMs: 50})

	for i := 0; i < 100; i++ {
		d := latency.Delay()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}
