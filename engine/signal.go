package engine

import "fmt"

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------
//
// Signals are delivered asynchronously: RaiseSignal only sets a bit in the
// engine's pending mask. The engine handles pending signals at poll points:
// query dispatch, stack growth and explicit HandleSignals calls. Handling
// is deferred while a signal-atomic predicate runs.

// Signal numbers a pending-signal bit.
type Signal uint

const (
	// SigAbort raises unwind(abort).
	SigAbort Signal = iota + 1
	// SigTimeout raises time_limit_exceeded.
	SigTimeout
	// SigGC runs atom garbage collection.
	SigGC
	// SigUser is the first signal number free for applications.
	SigUser

	maxSignal Signal = 63
)

func (s Signal) String() string {
	switch s {
	case SigAbort:
		return "abort"
	case SigTimeout:
		return "timeout"
	case SigGC:
		return "gc"
	}
	return fmt.Sprintf("sig%d", uint(s))
}

// SignalHandler runs on the engine's goroutine. It returns false after
// raising an exception.
type SignalHandler func(e *Engine, sig Signal) bool

// SetSignalHandler installs h for sig; a nil h restores the default.
func (rt *Runtime) SetSignalHandler(sig Signal, h SignalHandler) error {
	if sig == 0 || sig > maxSignal {
		return fmt.Errorf("set signal handler: signal %d out of range", sig)
	}
	rt.sigMu.Lock()
	defer rt.sigMu.Unlock()
	if h == nil {
		delete(rt.handlers, sig)
	} else {
		rt.handlers[sig] = h
	}
	return nil
}

func (rt *Runtime) signalHandler(sig Signal) SignalHandler {
	rt.sigMu.RLock()
	h, ok := rt.handlers[sig]
	rt.sigMu.RUnlock()
	if ok {
		return h
	}
	switch sig {
	case SigAbort:
		return abortHandler
	case SigTimeout:
		return timeoutHandler
	case SigGC:
		return gcHandler
	}
	return nil
}

func abortHandler(e *Engine, _ Signal) bool {
	i, ok := e.allocGlobalQuiet(2)
	if !ok {
		e.putAbortInBin()
		return false
	}
	e.global.w[i] = functorWord(FunctorUnwind1)
	e.global.w[i+1] = atomWord(AtomAbort)
	e.local.w[tmpSlot] = compoundWord(i)
	e.raise(lloc(tmpSlot))
	e.local.w[tmpSlot] = 0
	return false
}

func timeoutHandler(e *Engine, _ Signal) bool {
	e.local.w[tmpSlot] = atomWord(AtomTimeLimitExceeded)
	e.raise(lloc(tmpSlot))
	e.local.w[tmpSlot] = 0
	return false
}

func gcHandler(e *Engine, _ Signal) bool {
	e.rt.GarbageCollectAtoms()
	return true
}

// RaiseSignal marks sig pending for e. It is safe from any goroutine.
func (e *Engine) RaiseSignal(sig Signal) bool {
	if sig == 0 || sig > maxSignal {
		return false
	}
	e.pending.Or(uint64(1) << (sig - 1))
	return true
}

// PendingSignals returns the signals not yet handled.
func (e *Engine) PendingSignals() []Signal {
	mask := e.pending.Load()
	var out []Signal
	for s := Signal(1); s <= maxSignal; s++ {
		if mask&(1<<(s-1)) != 0 {
			out = append(out, s)
		}
	}
	return out
}

// HandleSignals runs the handlers of all pending signals, lowest number
// first. It returns false if a handler raised an exception. Inside a
// signal-atomic region nothing is handled.
func (e *Engine) HandleSignals() bool {
	if e.sigAtomic > 0 {
		return true
	}
	for {
		mask := e.pending.Load()
		if mask == 0 {
			return true
		}
		s := Signal(1)
		for mask&(1<<(s-1)) == 0 {
			s++
		}
		bit := uint64(1) << (s - 1)
		if !e.pending.CompareAndSwap(mask, mask&^bit) {
			continue
		}
		h := e.rt.signalHandler(s)
		if h == nil {
			log.Warningf("engine %d: no handler for signal %s", e.id, s)
			continue
		}
		log.Debugf("engine %d: handling signal %s", e.id, s)
		e.sigAtomic++
		ok := h(e, s)
		e.sigAtomic--
		if !ok {
			if e.exceptionTerm == 0 {
				log.Errorf("engine %d: handler for %s failed without an exception", e.id, s)
			}
			return false
		}
	}
}

// pollSignals handles pending signals at an internal poll point. It is a
// no-op while an exception is being delivered.
func (e *Engine) pollSignals() bool {
	if e.pending.Load() == 0 || e.inGC || e.processing || e.overflowing {
		return true
	}
	return e.HandleSignals()
}

// SigAtomic runs fn with signal handling deferred.
func (e *Engine) SigAtomic(fn func()) {
	e.sigAtomic++
	defer func() { e.sigAtomic-- }()
	fn()
}
