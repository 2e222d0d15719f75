package engine

// ---------------------------------------------------------------------------
// Binding, trailing and choice marks
// ---------------------------------------------------------------------------

// Mark is a choice point: the stack tops to return to on Undo.
type Mark struct {
	global  int
	trail   int
	wakeups int
	prevBar int
}

// Wakeup records the binding of an attributed variable. The execution
// engine runs the attribute hooks; this core only queues them.
type Wakeup struct {
	Attributes Term // handle holding the attribute value
	Value      Term // handle holding the value the variable was bound to
}

type wakeup struct {
	attrs loc
	value Word
}

// Mark opens a choice point. Bindings of global cells created before it
// are trailed from now on; cells created after it are not.
func (e *Engine) Mark() Mark {
	m := Mark{
		global:  e.global.top,
		trail:   e.trail.top,
		wakeups: len(e.wakeups),
		prevBar: e.markBar,
	}
	e.markBar = e.global.top
	return m
}

// Undo resets every binding trailed since m, in reverse order, and
// truncates the global stack back to m. The mark stays active.
func (e *Engine) Undo(m Mark) {
	for i := e.trail.top - 1; i >= m.trail; i-- {
		te := e.trail.e[i]
		if te.value {
			e.set(te.p, te.old)
		} else {
			e.set(te.p, 0)
		}
	}
	e.trail.top = m.trail
	e.global.top = max(m.global, e.frozenBar)
	e.markBar = m.global
	if len(e.wakeups) > m.wakeups {
		e.wakeups = e.wakeups[:m.wakeups]
	}
}

// CommitMark discards the choice point m, keeping its bindings.
func (e *Engine) CommitMark(m Mark) {
	e.markBar = m.prevBar
}

// needsTrail reports whether binding p must be recorded. Local cells are
// always trailed; global cells only below the mark bar.
func (e *Engine) needsTrail(p loc) bool {
	return p.local() || p.index() < e.markBar
}

func (e *Engine) pushTrail(te trailEntry) bool {
	if !e.ensureTrail(1) {
		return false
	}
	e.trail.e[e.trail.top] = te
	e.trail.top++
	if e.trail.top > e.trail.peak {
		e.trail.peak = e.trail.top
	}
	return true
}

// bind stores w in the unbound cell p, trailing as needed. p holds a plain
// variable; attributed variables go through bindAttVar.
func (e *Engine) bind(p loc, w Word) bool {
	if e.needsTrail(p) && !e.pushTrail(trailEntry{p: p}) {
		return false
	}
	e.set(p, w)
	return true
}

// bindAttVar binds the attributed variable at p and queues a wakeup.
func (e *Engine) bindAttVar(p loc, w Word) bool {
	old := e.get(p)
	if !e.pushTrail(trailEntry{p: p, old: old, value: true}) {
		return false
	}
	e.set(p, w)
	e.wakeups = append(e.wakeups, wakeup{attrs: old.target(), value: w})
	return true
}

// bindVar binds whichever unbound cell p holds.
func (e *Engine) bindVar(p loc, old, w Word) bool {
	if old.isAttVar() {
		return e.bindAttVar(p, w)
	}
	return e.bind(p, w)
}

// bindConst binds the dereferenced unbound cell p to a value word that
// needs no linking (atoms, small integers, pointers to new global data).
func (e *Engine) bindConst(p loc, w Word) bool {
	return e.bindVar(p, e.get(p), w)
}

// ---------------------------------------------------------------------------
// Linking values into slots
// ---------------------------------------------------------------------------

// linkVal returns the word to store elsewhere to share the value at p. If p
// ultimately is a variable on the local stack it is globalized first: a new
// global cell is created and the local variable is bound to it. This may
// grow the global and trail stacks.
func (e *Engine) linkVal(p loc) (Word, bool) {
	p, w := e.deref(p)
	if w.isVar() {
		if p.local() {
			g, ok := e.allocGlobal(1)
			if !ok {
				return 0, false
			}
			ref := makeRef(gloc(g))
			if !e.bind(p, ref) {
				return 0, false
			}
			return ref, true
		}
		return makeRef(p), true
	}
	if w.isAttVar() {
		return makeRef(p), true
	}
	return w, true
}

// linkValNoG is linkVal that never allocates. A local variable is returned
// as a fresh unlinked variable, which is fine where a variable is an error.
func (e *Engine) linkValNoG(p loc) Word {
	p, w := e.deref(p)
	if w.canBind() {
		if p.local() {
			return 0
		}
		return makeRef(p)
	}
	return w
}

// bindConsVal initialises the new global cell to (inside a compound being
// constructed) with the value at p, binding toward the lower address.
func (e *Engine) bindConsVal(to int, p loc) bool {
	p, w := e.deref(p)
	if w.canBind() {
		if gloc(to) < p && !w.isAttVar() {
			e.global.w[to] = 0
			return e.bind(p, makeRef(gloc(to)))
		}
		e.global.w[to] = makeRef(p)
		return true
	}
	e.global.w[to] = w
	return true
}

// PendingWakeups returns and clears the queue of attributed-variable
// bindings. Each wakeup is returned as two new handles in the current frame.
func (e *Engine) PendingWakeups() []Wakeup {
	if len(e.wakeups) == 0 {
		return nil
	}
	out := make([]Wakeup, 0, len(e.wakeups))
	for _, wk := range e.wakeups {
		a := e.NewTermRefs(2)
		if a == 0 {
			break
		}
		e.setHandle(a, makeRef(wk.attrs))
		e.setHandle(a+1, wk.value)
		out = append(out, Wakeup{Attributes: a, Value: a + 1})
	}
	e.wakeups = e.wakeups[:0]
	return out
}
