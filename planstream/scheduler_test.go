package planstream

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerCoalesces(t *testing.T) {
	var fires atomic.Int32
	s := newFlushScheduler(20*time.Millisecond, func() { fires.Add(1) })

	for i := 0; i < 5; i++ {
		s.schedule()
	}
	require.Eventually(t, func() bool { return fires.Load() == 1 },
		time.Second, time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load())
}

func TestSchedulerSynchronousWhenDisabled(t *testing.T) {
	var fires atomic.Int32
	s := newFlushScheduler(0, func() { fires.Add(1) })
	s.schedule()
	s.schedule()
	assert.Equal(t, int32(2), fires.Load())
}

func TestSchedulerCancelDropsPending(t *testing.T) {
	var fires atomic.Int32
	s := newFlushScheduler(20*time.Millisecond, func() { fires.Add(1) })
	s.schedule()
	s.cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())

	// A cancel does not disable the scheduler.
	s.schedule()
	require.Eventually(t, func() bool { return fires.Load() == 1 },
		time.Second, time.Millisecond)
}

func TestSchedulerStopBlocksFiring(t *testing.T) {
	var fires atomic.Int32
	s := newFlushScheduler(10*time.Millisecond, func() { fires.Add(1) })
	s.schedule()
	s.stop()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())

	s.schedule()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())

	s.resume()
	s.schedule()
	require.Eventually(t, func() bool { return fires.Load() == 1 },
		time.Second, time.Millisecond)
}
