package engine

import "sync/atomic"

// ---------------------------------------------------------------------------
// Engine: per-thread context
// ---------------------------------------------------------------------------

// Reserved local-stack slots, below every foreign frame.
const (
	sentinelSlot = 0 // index 0 is never a valid Term
	binSlot      = 1 // pending exception
	tmpSlot      = 2 // scratch slot for internally built terms
	firstFrame   = 3 // marker of the root foreign frame
)

// Engine is one Prolog thread: its stacks, foreign frame chain, open queries
// and exception state. An engine is used by a single goroutine; only
// RaiseSignal may be called from elsewhere.
type Engine struct {
	rt   *Runtime
	id   int
	uuid string

	global wordStack
	local  wordStack
	trail  trailStack

	markBar   int // global cells below this index are trailed when bound
	frozenBar int // undo never truncates the global stack below this index

	fli   *foreignFrame
	env   *callFrame
	query *Query

	exceptionTerm Term
	processing    bool
	overflowing   bool
	inGC          bool
	interrupted   bool // a signal handler raised during stack growth

	wakeups []wakeup

	pending   atomic.Uint64
	sigAtomic int

	validate bool
	detached bool
}

func newEngine(rt *Runtime, id int, uid string) *Engine {
	o := rt.opts
	e := &Engine{rt: rt, id: id, uuid: uid, validate: o.ValidateAPI}

	e.global = wordStack{stackInfo: stackInfo{id: GlobalStack, limit: o.GlobalLimit, spare: o.Spare}}
	e.local = wordStack{stackInfo: stackInfo{id: LocalStack, limit: o.LocalLimit, spare: o.Spare}}
	e.trail = trailStack{stackInfo: stackInfo{id: TrailStack, limit: o.TrailLimit, spare: o.Spare}}
	e.global.w = make([]Word, o.GlobalSize)
	e.local.w = make([]Word, max(o.LocalSize, firstFrame+1))
	e.trail.e = make([]trailEntry, o.TrailSize)

	e.local.w[sentinelSlot] = atomWord(AtomTermTFree)
	e.local.top = firstFrame
	e.openFrame()
	return e
}

// Runtime returns the runtime e is attached to.
func (e *Engine) Runtime() *Runtime { return e.rt }

// ID returns the engine number, unique within its runtime.
func (e *Engine) ID() int { return e.id }

// UUID returns the engine's globally unique identifier.
func (e *Engine) UUID() string { return e.uuid }

// Detach releases the engine. Handles become invalid.
func (e *Engine) Detach() {
	if e.detached {
		return
	}
	e.detached = true
	e.rt.detach(e)
	e.global.w, e.local.w, e.trail.e = nil, nil, nil
	e.fli, e.env, e.query = nil, nil, nil
}

// ---------------------------------------------------------------------------
// Cell access
// ---------------------------------------------------------------------------

func (e *Engine) get(p loc) Word {
	if p.local() {
		return e.local.w[p.index()]
	}
	return e.global.w[p.index()]
}

func (e *Engine) set(p loc, w Word) {
	if p.local() {
		e.local.w[p.index()] = w
	} else {
		e.global.w[p.index()] = w
	}
}

// deref follows reference chains. Stack invariants forbid reference cycles.
func (e *Engine) deref(p loc) (loc, Word) {
	w := e.get(p)
	for w.isRef() {
		p = w.target()
		w = e.get(p)
	}
	return p, w
}

// valTermRef returns the location of handle t.
func valTermRef(t Term) loc { return lloc(int(t)) }

// handle returns the dereferenced location and word of t.
func (e *Engine) handle(t Term) (loc, Word) { return e.deref(valTermRef(t)) }

func (e *Engine) setHandle(t Term, w Word) { e.local.w[t] = w }

// arg returns the location of argument i (0-based) of the compound at word w.
func argLoc(w Word, i int) loc { return gloc(w.target().index() + 1 + i) }
