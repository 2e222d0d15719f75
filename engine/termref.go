package engine

import "fmt"

// ---------------------------------------------------------------------------
// Term references and foreign frames
// ---------------------------------------------------------------------------

// Term is a handle to a slot on the local stack. It is only meaningful
// relative to the engine's active foreign frame. The zero Term is the
// failure sentinel returned when no slot could be allocated.
type Term uint32

// FrameID identifies an open foreign frame.
type FrameID int

// foreignFrame delimits the handles owned by one native call. Its marker
// word sits on the local stack just below its first slot.
type foreignFrame struct {
	parent       *foreignFrame
	marker       int
	size         int
	noFreeBefore int
	mark         Mark
}

func (fr *foreignFrame) base() int { return fr.marker + 1 }

// callFrame is the argument vector of a foreign predicate being called.
type callFrame struct {
	parent *callFrame
	pred   *Predicate
	argv   int
	arity  int
}

// APIError reports misuse of the handle API by native code. It is raised
// with panic since it indicates a bug, not a Prolog-level condition.
type APIError struct {
	Op  string
	Msg string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Msg) }

func apiError(op, format string, args ...any) {
	err := &APIError{Op: op, Msg: fmt.Sprintf(format, args...)}
	log.Criticalf("API usage error: %s", err)
	panic(err)
}

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

func (e *Engine) openFrame() *foreignFrame {
	m := e.local.top
	e.local.w[m] = atomWord(AtomFliFrame)
	e.local.top++
	fr := &foreignFrame{parent: e.fli, marker: m, mark: e.Mark()}
	e.fli = fr
	return fr
}

// popFrame drops the innermost frame, keeping its bindings.
func (e *Engine) popFrame() {
	fr := e.fli
	e.CommitMark(fr.mark)
	e.local.top = fr.marker
	e.dropLocalTrail(fr.mark.trail)
	e.fli = fr.parent
}

// OpenForeignFrame opens a frame for scratch handles and a choice mark.
// It returns 0 if the local stack is exhausted.
func (e *Engine) OpenForeignFrame() FrameID {
	if !e.ensureLocal(1) {
		return 0
	}
	return FrameID(e.openFrame().marker)
}

func (e *Engine) frameFor(op string, fid FrameID) *foreignFrame {
	fr := e.fli
	if fr == nil || FrameID(fr.marker) != fid {
		apiError(op, "frame %d is not the innermost foreign frame", fid)
	}
	if fr.parent == nil {
		apiError(op, "cannot close the root foreign frame")
	}
	return fr
}

// CloseForeignFrame releases the handles of fid, keeping its bindings.
func (e *Engine) CloseForeignFrame(fid FrameID) {
	e.frameFor("CloseForeignFrame", fid)
	e.popFrame()
}

// DiscardForeignFrame undoes the bindings made since fid was opened and
// releases its handles.
func (e *Engine) DiscardForeignFrame(fid FrameID) {
	fr := e.frameFor("DiscardForeignFrame", fid)
	e.Undo(fr.mark)
	e.popFrame()
}

// RewindForeignFrame undoes the bindings made since fid was opened and
// releases its handles, leaving the frame open.
func (e *Engine) RewindForeignFrame(fid FrameID) {
	fr := e.frameFor("RewindForeignFrame", fid)
	e.Undo(fr.mark)
	e.local.top = fr.base()
	fr.size = 0
	fr.noFreeBefore = 0
}

// dropLocalTrail removes trail entries above index from that point into
// the discarded part of the local stack, so a later undo cannot clobber
// slots reused by newer handles.
func (e *Engine) dropLocalTrail(from int) {
	j := from
	for i := from; i < e.trail.top; i++ {
		te := e.trail.e[i]
		if te.p.local() && te.p.index() >= e.local.top {
			continue
		}
		e.trail.e[j] = te
		j++
	}
	e.trail.top = j
}

// voidLocalTrail neutralizes the trail entries above from that refer to
// local slots selected by drop. The entries stay in place so marks opened
// since from keep their trail positions; undoing a void entry clears the
// reserved slot 0.
func (e *Engine) voidLocalTrail(from int, drop func(i int) bool) {
	for i := from; i < e.trail.top; i++ {
		if p := e.trail.e[i].p; p.local() && drop(p.index()) {
			e.trail.e[i] = trailEntry{p: lloc(0)}
		}
	}
}

func (e *Engine) aboveLocalTop(i int) bool { return i >= e.local.top }

// FrameStats describes the innermost foreign frame.
type FrameStats struct {
	Size         int // slots allocated, including tombstones
	Live         int // slots not freed
	NoFreeBefore int // no tombstone below this slot index
}

// FrameStats returns the bookkeeping of the innermost frame.
func (e *Engine) FrameStats() FrameStats {
	fr := e.fli
	s := FrameStats{Size: fr.size, NoFreeBefore: fr.noFreeBefore}
	for i := 0; i < fr.size; i++ {
		if !e.isFreed(fr.base() + i) {
			s.Live++
		}
	}
	return s
}

func (e *Engine) isFreed(i int) bool {
	return e.local.w[i] == atomWord(AtomTermTFree)
}

// ---------------------------------------------------------------------------
// Creating and releasing handles
// ---------------------------------------------------------------------------

func (e *Engine) requireFrame(op string) {
	if e.fli == nil {
		apiError(op, "no foreign environment")
	}
}

// NewTermRefs allocates n consecutive fresh variables and returns the first.
func (e *Engine) NewTermRefs(n int) Term {
	e.requireFrame("NewTermRefs")
	if n < 0 {
		apiError("NewTermRefs", "negative count %d", n)
	}
	if !e.ensureLocal(n) {
		return 0
	}
	fr := e.fli
	t := Term(e.local.top)
	clear(e.local.w[e.local.top : e.local.top+n])
	e.local.top += n
	fr.size += n
	if fr.noFreeBefore == fr.size-n {
		fr.noFreeBefore = fr.size
	}
	e.notePeak()
	return t
}

// NewTermRef allocates one fresh variable handle on top of the frame.
// Freed slots are never handed out again; they are reclaimed once every
// handle above them is gone.
func (e *Engine) NewTermRef() Term {
	e.requireFrame("NewTermRef")
	if !e.ensureLocal(1) {
		return 0
	}
	fr := e.fli
	t := Term(e.local.top)
	e.local.w[t] = 0
	e.local.top++
	fr.size++
	if fr.noFreeBefore == fr.size-1 {
		fr.noFreeBefore = fr.size
	}
	e.notePeak()
	return t
}

// NewNilRef allocates a handle holding [].
func (e *Engine) NewNilRef() Term {
	t := e.NewTermRef()
	if t != 0 {
		e.setHandle(t, atomWord(AtomNil))
	}
	return t
}

func (e *Engine) notePeak() {
	if e.local.top > e.local.peak {
		e.local.peak = e.local.top
	}
}

// FreeTermRef releases t. The top slot is reclaimed; an interior slot is
// tombstoned, since reclaiming it would invalidate later handles.
func (e *Engine) FreeTermRef(t Term) {
	e.validUser("FreeTermRef", t)
	fr := e.fli
	i := int(t)
	if i+1 == e.local.top && i >= fr.base() {
		e.local.top = i
		fr.size--
		for fr.size > 0 && e.isFreed(e.local.top-1) {
			e.local.top--
			fr.size--
		}
		fr.noFreeBefore = min(fr.noFreeBefore, fr.size)
		e.voidLocalTrail(fr.mark.trail, e.aboveLocalTop)
		return
	}
	owner := e.inForeignFrame(i)
	if owner == nil {
		apiError("FreeTermRef", "term %d is not in any foreign frame", t)
	}
	if k := i - owner.base(); k < owner.noFreeBefore {
		owner.noFreeBefore = k
	}
	e.local.w[i] = atomWord(AtomTermTFree)
	e.voidLocalTrail(owner.mark.trail, func(j int) bool { return j == i })
}

// ResetTermRefs discards t and every handle allocated after it in the
// innermost frame.
func (e *Engine) ResetTermRefs(t Term) {
	e.valid("ResetTermRefs", t)
	fr := e.fli
	if int(t) < fr.base() {
		apiError("ResetTermRefs", "term %d is below the innermost frame", t)
	}
	e.local.top = int(t)
	fr.size = e.local.top - fr.base()
	fr.noFreeBefore = min(fr.noFreeBefore, fr.size)
	e.voidLocalTrail(fr.mark.trail, e.aboveLocalTop)
}

// CopyTermRef returns a new handle sharing the value of from. A local
// variable is globalized first so the copy survives from's frame.
func (e *Engine) CopyTermRef(from Term) Term {
	e.valid("CopyTermRef", from)
	if !e.ensureLocal(1) || !e.Globalize(from) {
		return 0
	}
	w, ok := e.linkVal(valTermRef(from))
	if !ok {
		return 0
	}
	t := e.NewTermRef()
	if t != 0 {
		e.setHandle(t, w)
	}
	return t
}

// Globalize makes sure the slot of t does not hold a bare local variable:
// such a variable is bound to a new global cell. Globalizing twice is a
// no-op and yields the same global cell.
func (e *Engine) Globalize(t Term) bool {
	p := valTermRef(t)
	if e.get(p).isVar() {
		g, ok := e.allocGlobal(1)
		if !ok {
			return false
		}
		return e.bind(p, makeRef(gloc(g)))
	}
	return true
}

// ---------------------------------------------------------------------------
// Validity checks
// ---------------------------------------------------------------------------

func (e *Engine) inForeignArgv(i int) bool {
	for cf := e.env; cf != nil; cf = cf.parent {
		if i >= cf.argv && i < cf.argv+cf.arity {
			return true
		}
	}
	return false
}

func (e *Engine) inForeignFrame(i int) *foreignFrame {
	for fr := e.fli; fr != nil; fr = fr.parent {
		if i >= fr.base() && i < fr.base()+fr.size {
			return fr
		}
		if fr.marker < i {
			break
		}
	}
	return nil
}

func (e *Engine) inQueryArguments(i int) bool {
	for q := e.query; q != nil; q = q.parent {
		if i >= int(q.argv) && i < int(q.argv)+q.arity {
			return true
		}
	}
	return false
}

// valid checks a handle used as input: it may be a foreign argument, a frame
// slot or a query argument.
func (e *Engine) valid(op string, t Term) {
	if !e.validate {
		return
	}
	e.checkRange(op, t)
	i := int(t)
	if e.inForeignArgv(i) || e.inForeignFrame(i) != nil || e.inQueryArguments(i) {
		return
	}
	apiError(op, "invalid term %d (not in any foreign frame)", t)
}

// validUser checks a handle that must have been created by NewTermRef.
func (e *Engine) validUser(op string, t Term) {
	if !e.validate {
		return
	}
	e.checkRange(op, t)
	if e.inForeignFrame(int(t)) == nil {
		apiError(op, "invalid term %d (not in any foreign frame)", t)
	}
}

func (e *Engine) checkRange(op string, t Term) {
	i := int(t)
	if i < firstFrame || i >= e.local.top {
		apiError(op, "invalid term %d (out of range)", t)
	}
	if e.isFreed(i) {
		apiError(op, "invalid term %d (freed)", t)
	}
}

// ValidTerm reports whether t is a live handle of this engine, without
// raising a usage error.
func (e *Engine) ValidTerm(t Term) bool {
	i := int(t)
	if i < firstFrame || i >= e.local.top || e.isFreed(i) {
		return false
	}
	return e.inForeignArgv(i) || e.inForeignFrame(i) != nil || e.inQueryArguments(i)
}
