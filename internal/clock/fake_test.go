package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	var fired []string
	fc.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") })
	fc.AfterFunc(1*time.Minute, func() { fired = append(fired, "first") })
	fc.AfterFunc(10*time.Minute, func() { fired = append(fired, "late") })

	fc.Advance(5 * time.Minute)

	assert.Equal(t, []string{"first", "second"}, fired)
	assert.Equal(t, start.Add(5*time.Minute), fc.Now())
	assert.Equal(t, 1, fc.Pending())
}

func TestFake_StoppedTimerNeverFires(t *testing.T) {
	fc := NewFake(time.Now())
	called := false
	timer := fc.AfterFunc(time.Minute, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	fc.Advance(time.Hour)
	assert.False(t, called)
}

func TestFake_CallbackSeesDeadlineAsNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	var seen time.Time
	fc.AfterFunc(30*time.Minute, func() { seen = fc.Now() })
	fc.Advance(time.Hour)

	assert.Equal(t, start.Add(30*time.Minute), seen)
}

func TestFake_CallbackMayRearm(t *testing.T) {
	fc := NewFake(time.Now())
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			fc.AfterFunc(time.Minute, tick)
		}
	}
	fc.AfterFunc(time.Minute, tick)

	fc.Advance(10 * time.Minute)
	assert.Equal(t, 3, count)
}
