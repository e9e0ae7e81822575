package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// LatencyConfig holds the artificial delay applied at authentication suspension points
type LatencyConfig struct {
	BaseDelayMs   int // Base delay in milliseconds
	RandomDelayMs int // Random delay range in milliseconds
}

// LatencySimulator pauses auth operations so that every outcome takes a similar,
// slightly randomized amount of time. A zero config disables it.
type LatencySimulator struct {
	config LatencyConfig
}

func NewLatencySimulator(config LatencyConfig) *LatencySimulator {
	return &LatencySimulator{config: config}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// Delay returns the duration the next Wait would sleep for.
func (ls *LatencySimulator) Delay() time.Duration {
	if ls == nil {
		return 0
	}
	delay := time.Duration(ls.config.BaseDelayMs) * time.Millisecond
	if ls.config.RandomDelayMs > 0 {
		if n, err := cryptoRandIntn(ls.config.RandomDelayMs); err == nil {
			delay += time.Duration(n) * time.Millisecond
		}
	}
	return delay
}

// Wait sleeps for base + jitter or until ctx is done, whichever comes first.
func (ls *LatencySimulator) Wait(ctx context.Context) error {
	delay := ls.Delay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
