package engine

// ---------------------------------------------------------------------------
// Exception classification
// ---------------------------------------------------------------------------

// ExceptClass orders pending exceptions. A newly raised exception replaces
// the pending one only if its class is strictly higher.
type ExceptClass int

const (
	ExceptNone ExceptClass = iota
	ExceptOther
	ExceptError
	ExceptTimeout
	ExceptResource
	ExceptUnwind
	ExceptThreadExit
	ExceptAbort
	ExceptHalt
)

var exceptClassNames = [...]string{
	ExceptNone:       "none",
	ExceptOther:      "other",
	ExceptError:      "error",
	ExceptTimeout:    "timeout",
	ExceptResource:   "resource",
	ExceptUnwind:     "unwind",
	ExceptThreadExit: "thread_exit",
	ExceptAbort:      "abort",
	ExceptHalt:       "halt",
}

func (c ExceptClass) String() string {
	if c < 0 || int(c) >= len(exceptClassNames) {
		return "unknown"
	}
	return exceptClassNames[c]
}

// classify returns the class of the term at p.
func (e *Engine) classify(p loc) ExceptClass {
	_, w := e.deref(p)
	switch {
	case w.canBind():
		return ExceptNone
	case w.isAtom():
		switch w.atom() {
		case AtomAbort:
			return ExceptAbort
		case AtomTimeLimitExceeded:
			return ExceptTimeout
		}
		return ExceptOther
	case w.isCompound():
		f := e.global.w[w.target().index()].functor()
		switch f {
		case FunctorError2:
			_, formal := e.deref(argLoc(w, 0))
			if formal.isCompound() && e.global.w[formal.target().index()].functor() == FunctorResourceError1 {
				return ExceptResource
			}
			return ExceptError
		case FunctorTimeLimitExceeded1:
			return ExceptTimeout
		case FunctorHalt1:
			return ExceptHalt
		case FunctorThreadExit1:
			return ExceptThreadExit
		case FunctorUnwind1:
			_, arg := e.deref(argLoc(w, 0))
			switch {
			case arg.isAtom() && arg.atom() == AtomAbort:
				return ExceptAbort
			case arg.isCompound():
				switch e.global.w[arg.target().index()].functor() {
				case FunctorHalt1:
					return ExceptHalt
				case FunctorThreadExit1:
					return ExceptThreadExit
				}
			}
			return ExceptUnwind
		}
	}
	return ExceptOther
}

// ClassifyException returns the class of the term t.
func (e *Engine) ClassifyException(t Term) ExceptClass {
	e.valid("ClassifyException", t)
	return e.classify(valTermRef(t))
}

// ---------------------------------------------------------------------------
// Raising
// ---------------------------------------------------------------------------

// RaiseException makes t the pending exception unless a pending exception
// of higher or equal class exists. It always returns false.
func (e *Engine) RaiseException(t Term) bool {
	e.valid("RaiseException", t)
	return e.raise(valTermRef(t))
}

func (e *Engine) raise(p loc) bool {
	if e.processing {
		return false
	}
	nc := e.classify(p)
	if nc == ExceptNone {
		apiError("RaiseException", "exception term is unbound")
	}
	if e.pendingOutranks(nc) {
		return false
	}
	e.processing = true
	e.copyException(p)
	e.processing = false
	return false
}

// pendingOutranks reports whether a pending exception stays in place when
// one of class c is raised.
func (e *Engine) pendingOutranks(c ExceptClass) bool {
	if e.exceptionTerm == 0 {
		return false
	}
	if oc := e.classify(lloc(binSlot)); oc >= c {
		log.Debugf("engine %d: keeping pending %s exception over new %s", e.id, oc, c)
		return true
	}
	return false
}

// copyException deep-copies the term at p into the exception bin. Copying
// may itself run out of stack; it then degrades step by step and always
// leaves some exception in the bin.
func (e *Engine) copyException(p loc) {
	base := e.global.top
	e.inGC = true
	defer func() { e.inGC = false }()

	if w, ok := e.copyTerm(p, e.allocGlobalQuiet); ok {
		e.fillBin(w)
		return
	}
	e.global.top = base
	e.enableSpareStacks()

	_, w := e.deref(p)
	if w.isCompound() && e.global.w[w.target().index()].functor() == FunctorError2 {
		log.Warningf("engine %d: no space for exception, retrying without context", e.id)
		if formal, ok := e.copyTerm(argLoc(w, 0), e.allocGlobalQuiet); ok {
			if i, ok := e.allocGlobalQuiet(3); ok {
				e.global.w[i] = functorWord(FunctorError2)
				e.global.w[i+1] = formal
				e.global.w[i+2] = 0
				e.fillBin(compoundWord(i))
				return
			}
		}
		e.global.top = base
	}

	log.Warningf("engine %d: no space for exception, using emergency resource error", e.id)
	if e.hasEmergencySpace(GlobalStack, 5) {
		g := e.takeGlobal(5)
		e.global.w[g] = functorWord(FunctorError2)
		e.global.w[g+1] = compoundWord(g + 3)
		e.global.w[g+2] = atomWord(AtomGlobal)
		e.global.w[g+3] = functorWord(FunctorResourceError1)
		e.global.w[g+4] = atomWord(AtomStack)
		e.fillBin(compoundWord(g))
		return
	}

	log.Warningf("engine %d: no emergency space, raising abort", e.id)
	e.putAbortInBin()
}

func (e *Engine) fillBin(w Word) {
	e.local.w[binSlot] = w
	e.frozenBar = e.global.top
	e.exceptionTerm = Term(binSlot)
}

// putAbortInBin is the last step of the fallback ladder; it needs no space.
func (e *Engine) putAbortInBin() {
	e.local.w[binSlot] = atomWord(AtomAbort)
	e.exceptionTerm = Term(binSlot)
}

// ---------------------------------------------------------------------------
// Inspecting and clearing
// ---------------------------------------------------------------------------

// HasException reports whether an exception is pending.
func (e *Engine) HasException() bool { return e.exceptionTerm != 0 }

// Exception returns a new handle holding the pending exception, or 0.
func (e *Engine) Exception() Term {
	if e.exceptionTerm == 0 {
		return 0
	}
	t := e.NewTermRef()
	if t != 0 {
		e.setHandle(t, e.local.w[binSlot])
	}
	return t
}

// ExceptionClass returns the class of the pending exception.
func (e *Engine) ExceptionClass() ExceptClass {
	if e.exceptionTerm == 0 {
		return ExceptNone
	}
	return e.classify(lloc(binSlot))
}

// ClearException discards the pending exception and re-arms the spare
// stack margins.
func (e *Engine) ClearException() {
	e.local.w[binSlot] = 0
	e.exceptionTerm = 0
	e.frozenBar = 0
	e.disableSpareStacks()
}

// ---------------------------------------------------------------------------
// Non-local transfer
// ---------------------------------------------------------------------------

// throwSignal is panicked by Throw and recovered at the query boundary.
type throwSignal struct{}

// Throw raises t and transfers control to the enclosing query.
func (e *Engine) Throw(t Term) {
	e.RaiseException(t)
	panic(throwSignal{})
}

// Rethrow transfers control to the enclosing query if an exception is
// pending. Otherwise it returns false.
func (e *Engine) Rethrow() bool {
	if e.exceptionTerm == 0 {
		return false
	}
	panic(throwSignal{})
}

// recoverThrow turns a throwSignal panic into a plain return. Other panics
// propagate.
func recoverThrow(r any) bool {
	if r == nil {
		return false
	}
	if _, ok := r.(throwSignal); ok {
		return true
	}
	panic(r)
}
