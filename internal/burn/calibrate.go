// Package burn provides a CPU-cycle burn helper used by demo job bodies to
// simulate real work, grounded on the original PTL project's
// utils/burner.c. Burn does not sleep: it consumes CPU the way a
// compute-bound periodic task would, so the supervisor has to manage real
// preemption and overruns rather than idle waiting.
package burn

import "sync/atomic"

// loopsPerMs is the calibrated cost of one millisecond of busy work, the
// counterpart of the source's g_LoopsPerMs. Calibrate stores it and Burn
// loads it with atomic operations.
var loopsPerMs uint64 = 250000

// Clock is the minimal timing surface Calibrate needs: a monotonic tick
// counter where one tick equals one millisecond, matching the engine's
// clock convention.
type Clock interface {
	NowMillis() uint64
}

// Calibrate measures loops-per-millisecond against clock over roughly
// durationMs milliseconds and stores the result for subsequent Burn calls.
// It blocks for approximately durationMs milliseconds.
func Calibrate(clock Clock, durationMs uint64) uint64 {
	if durationMs == 0 {
		durationMs = 100
	}

	start := clock.NowMillis()
	for clock.NowMillis() == start {
		// spin until the next tick edge
	}

	start = clock.NowMillis()
	var totalLoops uint64
	const block = 1000
	for {
		burnLoops(block)
		totalLoops += block
		if clock.NowMillis()-start >= durationMs {
			break
		}
	}

	measured := totalLoops / durationMs
	if measured == 0 {
		measured = 1
	}
	atomic.StoreUint64(&loopsPerMs, measured)
	return measured
}

// Burn busy-loops for approximately ms milliseconds of CPU time, based on
// the last Calibrate result (or the conservative default if Calibrate was
// never called).
func Burn(ms uint64) {
	perMs := atomic.LoadUint64(&loopsPerMs)
	for i := uint64(0); i < ms; i++ {
		burnLoops(perMs)
	}
}

// sink accumulates the busy-work result so the compiler cannot prove the
// loop in burnLoops has no observable effect and eliminate it.
var sink uint64

// burnLoops spins n iterations of cheap, non-eliminable work.
func burnLoops(n uint64) {
	var acc uint64
	for j := uint64(0); j < n; j++ {
		acc += j
	}
	atomic.AddUint64(&sink, acc)
}
