// Package timer provides the monotonic-microsecond deadline arithmetic and
// one-shot log limiter shared by the CCIEFB and SLMP engines.
//
// The timestamp domain is a free-running 32-bit microsecond counter, as
// produced by the host's NowMicros(). All comparisons are done modulo 2^32
// using signed-difference semantics so that a single period's wraparound is
// handled transparently without the caller needing to know the counter's
// current epoch.
package timer

// Timer is a single deadline, expressed as an offset from some start time
// plus a period. The zero value is a stopped timer.
type Timer struct {
	running  bool
	deadline uint32
	period   uint32
}

// Start arms the timer for period microseconds from now.
func (t *Timer) Start(period uint32, now uint32) {
	t.period = period
	t.deadline = now + period
	t.running = true
}

// Stop disarms the timer. IsExpired always returns false afterwards.
func (t *Timer) Stop() {
	t.running = false
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	return t.running
}

// Period returns the timer's configured period in microseconds.
func (t *Timer) Period() uint32 {
	return t.period
}

// IsExpired reports whether the timer is running and its deadline has been
// reached, using wraparound-safe signed-difference comparison: expired iff
// int32(now-deadline) >= 0.
func (t *Timer) IsExpired(now uint32) bool {
	if !t.running {
		return false
	}
	return int32(now-t.deadline) >= 0
}

// Restart re-arms the timer for another period starting at now, using the
// period it was last started with.
func (t *Timer) Restart(now uint32) {
	t.Start(t.period, now)
}
