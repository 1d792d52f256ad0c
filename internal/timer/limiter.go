package timer

// Limiter rate-limits repeated log/callback emissions of the same class of
// message so a misbehaving peer cannot flood the log. It wraps a single
// Timer plus bookkeeping of the last key seen.
//
// should_run_now semantics (see spec §4.1):
//  1. Timer not running: start it, remember key, emit.
//  2. Timer expired: restart it, remember key, emit (counts as new class).
//  3. Timer running and not expired, but key differs from last: emit without
//     restarting the timer (a different class of message always passes).
//  4. Otherwise: suppress, only count the call.
type Limiter struct {
	timer     Timer
	period    uint32
	lastKey   uint64
	hasKey    bool
	callCount uint64
	emitCount uint64
}

// NewLimiter constructs a Limiter with the given period in microseconds.
// A period of 0 is valid: the timer still arms, but expires on the very
// next call, so every call after the first emits.
func NewLimiter(period uint32) *Limiter {
	return &Limiter{period: period}
}

// ShouldRunNow decides whether the caller should emit now for the given key,
// and updates internal bookkeeping accordingly.
func (l *Limiter) ShouldRunNow(key uint64, now uint32) bool {
	l.callCount++

	if !l.timer.IsRunning() {
		l.timer.Start(l.period, now)
		l.lastKey = key
		l.hasKey = true
		l.emitCount++
		return true
	}

	if l.timer.IsExpired(now) {
		l.timer.Restart(now)
		l.lastKey = key
		l.hasKey = true
		l.emitCount++
		return true
	}

	if !l.hasKey || key != l.lastKey {
		l.lastKey = key
		l.hasKey = true
		l.emitCount++
		return true
	}

	return false
}

// CallCount returns the total number of times ShouldRunNow was invoked.
func (l *Limiter) CallCount() uint64 { return l.callCount }

// EmitCount returns the total number of times ShouldRunNow returned true.
func (l *Limiter) EmitCount() uint64 { return l.emitCount }

// Reset clears all state, as if the Limiter were newly constructed.
func (l *Limiter) Reset() {
	l.timer = Timer{}
	l.lastKey = 0
	l.hasKey = false
	l.callCount = 0
	l.emitCount = 0
}
