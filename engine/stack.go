package engine

// ---------------------------------------------------------------------------
// Stack memory model
// ---------------------------------------------------------------------------
//
// Each engine owns three arenas: the global stack (term data), the local
// stack (foreign frames and term-reference slots) and the trail (undo log).
// Cells are addressed by index, so growing an arena (a "shift") reallocates
// the backing slice without invalidating any handle or interior pointer.
// Code must not keep a slice of an arena across a call that may allocate.

// StackID names one of the engine's stacks.
type StackID int

const (
	GlobalStack StackID = iota
	LocalStack
	TrailStack
)

func (id StackID) String() string {
	switch id {
	case GlobalStack:
		return "global"
	case LocalStack:
		return "local"
	case TrailStack:
		return "trail"
	}
	return "unknown"
}

func (id StackID) atom() Atom {
	switch id {
	case LocalStack:
		return AtomLocalStack
	case TrailStack:
		return AtomTrailStack
	}
	return AtomGlobalStack
}

// Collector reclaims stack space. The engine calls it before growing a
// stack; it may compact data only through indices it can enumerate.
type Collector interface {
	CollectGarbage(e *Engine, id StackID)
}

type stackInfo struct {
	id          StackID
	top         int
	limit       int
	spare       int
	spareOn     bool
	shifts      int
	collections int
	peak        int
}

func (s *stackInfo) max() int {
	if s.spareOn {
		return s.limit + s.spare
	}
	return s.limit
}

type wordStack struct {
	stackInfo
	w []Word
}

type trailEntry struct {
	p     loc
	old   Word
	value bool // old holds the previous word (attributed variables)
}

type trailStack struct {
	stackInfo
	e []trailEntry
}

// StackStats reports the state of one stack.
type StackStats struct {
	Used        int
	Capacity    int
	Limit       int
	Spare       int
	Peak        int
	Shifts      int
	Collections int
}

func (e *Engine) info(id StackID) *stackInfo {
	switch id {
	case GlobalStack:
		return &e.global.stackInfo
	case LocalStack:
		return &e.local.stackInfo
	}
	return &e.trail.stackInfo
}

func (e *Engine) capacity(id StackID) int {
	switch id {
	case GlobalStack:
		return len(e.global.w)
	case LocalStack:
		return len(e.local.w)
	}
	return len(e.trail.e)
}

func (e *Engine) resize(id StackID, n int) {
	switch id {
	case GlobalStack:
		w := make([]Word, n)
		copy(w, e.global.w[:e.global.top])
		e.global.w = w
	case LocalStack:
		w := make([]Word, n)
		copy(w, e.local.w[:e.local.top])
		e.local.w = w
	case TrailStack:
		t := make([]trailEntry, n)
		copy(t, e.trail.e[:e.trail.top])
		e.trail.e = t
	}
}

// ensureSpace guarantees room for n more cells on stack id. It may run the
// collector and grow the arena. It does not raise; see ensureGlobal and
// friends for the raising variants.
func (e *Engine) ensureSpace(id StackID, n int) bool {
	st := e.info(id)
	if st.top+n <= e.capacity(id) {
		return true
	}

	if c := e.rt.opts.Collector; c != nil && !e.inGC {
		e.inGC = true
		c.CollectGarbage(e, id)
		e.inGC = false
		st.collections++
		if st.top+n <= e.capacity(id) {
			return true
		}
	}

	need := st.top + n
	if need > st.max() {
		return false
	}
	// growing is a poll point; a handler may raise instead
	if !e.pollSignals() {
		e.interrupted = true
		return false
	}
	old := e.capacity(id)
	newCap := min(max(old*2, need), st.max())
	e.resize(id, newCap)
	st.shifts++
	log.Debugf("engine %d: %s stack grown %d -> %d cells", e.id, id, old, newCap)
	return true
}

// hasEmergencySpace is like ensureSpace but may dig into the spare margin
// without enabling it for later allocations.
func (e *Engine) hasEmergencySpace(id StackID, n int) bool {
	st := e.info(id)
	need := st.top + n
	if need > st.limit+st.spare {
		return false
	}
	if need > e.capacity(id) {
		e.resize(id, need)
	}
	return true
}

func (e *Engine) enableSpareStacks() {
	for _, id := range []StackID{GlobalStack, LocalStack, TrailStack} {
		e.info(id).spareOn = true
	}
}

// disableSpareStacks re-arms the spare margin of stacks that are back
// within their limit.
func (e *Engine) disableSpareStacks() {
	for _, id := range []StackID{GlobalStack, LocalStack, TrailStack} {
		st := e.info(id)
		if st.top <= st.limit {
			st.spareOn = false
		}
	}
}

// ensure is ensureSpace raising a resource error on exhaustion.
func (e *Engine) ensure(id StackID, n int) bool {
	if e.ensureSpace(id, n) {
		return true
	}
	if e.interrupted {
		e.interrupted = false
		return false
	}
	return e.raiseStackOverflow(id)
}

func (e *Engine) ensureGlobal(n int) bool { return e.ensure(GlobalStack, n) }
func (e *Engine) ensureLocal(n int) bool  { return e.ensure(LocalStack, n) }
func (e *Engine) ensureTrail(n int) bool  { return e.ensure(TrailStack, n) }

// allocGlobal reserves n cells on the global stack and returns the index of
// the first one. The cells are unbound variables.
func (e *Engine) allocGlobal(n int) (int, bool) {
	if !e.ensureGlobal(n) {
		return 0, false
	}
	return e.takeGlobal(n), true
}

// allocGlobalQuiet is allocGlobal without raising on exhaustion. It is used
// while an exception is being delivered.
func (e *Engine) allocGlobalQuiet(n int) (int, bool) {
	if !e.ensureSpace(GlobalStack, n) {
		return 0, false
	}
	return e.takeGlobal(n), true
}

func (e *Engine) takeGlobal(n int) int {
	i := e.global.top
	clear(e.global.w[i : i+n])
	e.global.top += n
	if e.global.top > e.global.peak {
		e.global.peak = e.global.top
	}
	return i
}

// raiseStackOverflow raises error(resource_error(Stack), stack_overflow(Used, Limit))
// using the spare margin and returns false.
func (e *Engine) raiseStackOverflow(id StackID) bool {
	if e.overflowing {
		return false
	}
	e.overflowing = true
	defer func() { e.overflowing = false }()

	st := e.info(id)
	log.Warningf("engine %d: %s stack overflow (%d of %d cells)", e.id, id, st.top, st.limit)
	e.enableSpareStacks()

	if !e.hasEmergencySpace(GlobalStack, 8) {
		e.putAbortInBin()
		return false
	}
	g := e.global.top
	e.global.top += 8
	w := e.global.w
	w[g+0] = functorWord(FunctorError2)
	w[g+1] = compoundWord(g + 3)
	w[g+2] = compoundWord(g + 5)
	w[g+3] = functorWord(FunctorResourceError1)
	w[g+4] = atomWord(id.atom())
	w[g+5] = functorWord(FunctorStackOverflow2)
	w[g+6] = e.smallIntWord(int64(st.top))
	w[g+7] = e.smallIntWord(int64(st.limit))

	e.local.w[tmpSlot] = compoundWord(g)
	e.raise(lloc(tmpSlot))
	e.local.w[tmpSlot] = 0
	return false
}

// smallIntWord encodes n, which callers guarantee fits inline.
func (e *Engine) smallIntWord(n int64) Word {
	if w, ok := tryTaggedInt(n); ok {
		return w
	}
	return taggedInt(MaxTaggedInt)
}

// Stats returns a snapshot of the stack usage of e.
func (e *Engine) Stats(id StackID) StackStats {
	st := e.info(id)
	return StackStats{
		Used:        st.top,
		Capacity:    e.capacity(id),
		Limit:       st.limit,
		Spare:       st.spare,
		Peak:        st.peak,
		Shifts:      st.shifts,
		Collections: st.collections,
	}
}
