package engine

import (
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// Term types
// ---------------------------------------------------------------------------

// TermKind classifies the value of a handle.
type TermKind int

const (
	KindVariable TermKind = iota
	KindAttVar
	KindAtom
	KindNil
	KindBlob
	KindInteger
	KindFloat
	KindString
	KindCompound
	KindListPair
	KindDict
)

var termKindNames = [...]string{
	KindVariable: "variable",
	KindAttVar:   "attvar",
	KindAtom:     "atom",
	KindNil:      "nil",
	KindBlob:     "blob",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindCompound: "compound",
	KindListPair: "list_pair",
	KindDict:     "dict",
}

func (k TermKind) String() string {
	if k < 0 || int(k) >= len(termKindNames) {
		return "unknown"
	}
	return termKindNames[k]
}

// TermType returns the kind of the value of t.
func (e *Engine) TermType(t Term) TermKind {
	e.valid("TermType", t)
	_, w := e.handle(t)
	switch {
	case w.isVar():
		return KindVariable
	case w.isAttVar():
		return KindAttVar
	case w.isAtom():
		a := w.atom()
		if a == AtomNil {
			return KindNil
		}
		if !e.rt.atoms.IsText(a) {
			return KindBlob
		}
		return KindAtom
	case w.isInteger():
		return KindInteger
	case w.isFloat():
		return KindFloat
	case w.isString():
		return KindString
	}
	f := e.functorOf(w)
	if f == FunctorDot2 {
		return KindListPair
	}
	if e.rt.FunctorName(f) == AtomDict && e.rt.FunctorArity(f)%2 == 1 {
		return KindDict
	}
	return KindCompound
}

// functorOf returns the functor of a compound word.
func (e *Engine) functorOf(w Word) Functor {
	return e.global.w[w.target().index()].functor()
}

func (e *Engine) arityOf(w Word) int {
	return e.rt.FunctorArity(e.functorOf(w))
}

// ---------------------------------------------------------------------------
// Type tests
// ---------------------------------------------------------------------------

func (e *Engine) wordOf(op string, t Term) Word {
	e.valid(op, t)
	_, w := e.handle(t)
	return w
}

func (e *Engine) IsVariable(t Term) bool { return e.wordOf("IsVariable", t).canBind() }
func (e *Engine) IsAttVar(t Term) bool   { return e.wordOf("IsAttVar", t).isAttVar() }
func (e *Engine) IsInteger(t Term) bool  { return e.wordOf("IsInteger", t).isInteger() }
func (e *Engine) IsFloat(t Term) bool    { return e.wordOf("IsFloat", t).isFloat() }
func (e *Engine) IsString(t Term) bool   { return e.wordOf("IsString", t).isString() }
func (e *Engine) IsCompound(t Term) bool { return e.wordOf("IsCompound", t).isCompound() }

// IsAtom reports whether t is a text atom.
func (e *Engine) IsAtom(t Term) bool {
	w := e.wordOf("IsAtom", t)
	return w.isAtom() && e.rt.atoms.IsText(w.atom())
}

// IsBlob reports whether t is any atom, text atoms included.
func (e *Engine) IsBlob(t Term) bool { return e.wordOf("IsBlob", t).isAtom() }

func (e *Engine) IsNumber(t Term) bool {
	w := e.wordOf("IsNumber", t)
	return w.isInteger() || w.isFloat()
}

func (e *Engine) IsAtomic(t Term) bool { return e.wordOf("IsAtomic", t).isAtomic() }

// IsCallable reports whether t is an atom or compound.
func (e *Engine) IsCallable(t Term) bool {
	w := e.wordOf("IsCallable", t)
	return w.isCompound() || (w.isAtom() && e.rt.atoms.IsText(w.atom()))
}

// IsPair reports whether t is a list cell.
func (e *Engine) IsPair(t Term) bool {
	w := e.wordOf("IsPair", t)
	return w.isCompound() && e.functorOf(w) == FunctorDot2
}

// IsList reports whether t is a list cell or [].
func (e *Engine) IsList(t Term) bool {
	w := e.wordOf("IsList", t)
	return (w.isCompound() && e.functorOf(w) == FunctorDot2) || w == atomWord(AtomNil)
}

// IsFunctor reports whether t is a compound of f, or f's name if f has
// arity 0.
func (e *Engine) IsFunctor(t Term, f Functor) bool {
	w := e.wordOf("IsFunctor", t)
	if w.isCompound() {
		return e.functorOf(w) == f
	}
	return w.isAtom() && e.rt.FunctorArity(f) == 0 && e.rt.FunctorName(f) == w.atom()
}

// IsGround reports whether t contains no variables.
func (e *Engine) IsGround(t Term) bool {
	e.valid("IsGround", t)
	ground := true
	e.walk(valTermRef(t), func(w Word) bool {
		if w.canBind() {
			ground = false
		}
		return ground
	})
	return ground
}

// IsAcyclic reports whether t is a finite tree.
func (e *Engine) IsAcyclic(t Term) bool {
	e.valid("IsAcyclic", t)
	return e.acyclic(valTermRef(t))
}

// walk visits every subterm of p once. fn returning false stops the walk.
func (e *Engine) walk(p loc, fn func(Word) bool) {
	seen := make(map[int]struct{})
	work := []loc{p}
	for len(work) > 0 {
		q := work[len(work)-1]
		work = work[:len(work)-1]
		_, w := e.deref(q)
		if !fn(w) {
			return
		}
		if w.isAttVar() {
			work = append(work, w.target())
			continue
		}
		if !w.isCompound() {
			continue
		}
		fi := w.target().index()
		if _, ok := seen[fi]; ok {
			continue
		}
		seen[fi] = struct{}{}
		for i := e.arityOf(w) - 1; i >= 0; i-- {
			work = append(work, gloc(fi+1+i))
		}
	}
}

// acyclic runs a depth-first search keeping the compounds on the current
// path; reaching one again means a cycle.
func (e *Engine) acyclic(p loc) bool {
	type frame struct {
		fi   int
		next int
		n    int
	}
	onPath := make(map[int]bool)
	done := make(map[int]bool)

	enter := func(q loc) (frame, bool) {
		_, w := e.deref(q)
		if !w.isCompound() {
			return frame{}, false
		}
		return frame{fi: w.target().index(), n: e.arityOf(w)}, true
	}

	root, ok := enter(p)
	if !ok {
		return true
	}
	stack := []frame{root}
	onPath[root.fi] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == top.n {
			onPath[top.fi] = false
			done[top.fi] = true
			stack = stack[:len(stack)-1]
			continue
		}
		child, ok := enter(gloc(top.fi + 1 + top.next))
		top.next++
		if !ok || done[child.fi] {
			continue
		}
		if onPath[child.fi] {
			return false
		}
		onPath[child.fi] = true
		stack = append(stack, child)
	}
	return true
}

// ---------------------------------------------------------------------------
// GET: soft accessors
// ---------------------------------------------------------------------------
//
// Get functions never raise. They return false when t does not hold a
// value of the requested type, leaving the exception state untouched.

// GetAtom returns the atom of t. Blobs are atoms too.
func (e *Engine) GetAtom(t Term) (Atom, bool) {
	w := e.wordOf("GetAtom", t)
	if w.isAtom() {
		return w.atom(), true
	}
	return 0, false
}

// GetAtomChars returns the name of a text atom.
func (e *Engine) GetAtomChars(t Term) (string, bool) {
	w := e.wordOf("GetAtomChars", t)
	if w.isAtom() {
		return e.rt.AtomText(w.atom())
	}
	return "", false
}

// GetString returns the text of a string.
func (e *Engine) GetString(t Term) (string, bool) {
	w := e.wordOf("GetString", t)
	if w.isString() {
		return e.stringValue(w), true
	}
	return "", false
}

// GetBool accepts true, false, on and off.
func (e *Engine) GetBool(t Term) (bool, bool) {
	w := e.wordOf("GetBool", t)
	if !w.isAtom() {
		return false, false
	}
	switch w.atom() {
	case AtomTrue, AtomOn:
		return true, true
	case AtomFalse, AtomOff:
		return false, true
	}
	return false, false
}

// GetInt64 returns an integer that fits in int64. Floats with an integral
// value are not accepted.
func (e *Engine) GetInt64(t Term) (int64, bool) {
	w := e.wordOf("GetInt64", t)
	if !w.isInteger() {
		return 0, false
	}
	n, _, ok := e.integerValue(w)
	return n, ok
}

// GetInteger returns an integer that fits in int.
func (e *Engine) GetInteger(t Term) (int, bool) {
	n, ok := e.GetInt64(t)
	if !ok || n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

// GetUint64 returns a non-negative integer that fits in uint64.
func (e *Engine) GetUint64(t Term) (uint64, bool) {
	w := e.wordOf("GetUint64", t)
	if !w.isInteger() {
		return 0, false
	}
	n, b, ok := e.integerValue(w)
	if ok {
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

// GetBigInt returns any integer.
func (e *Engine) GetBigInt(t Term) (*big.Int, bool) {
	w := e.wordOf("GetBigInt", t)
	if !w.isInteger() {
		return nil, false
	}
	return e.bigValue(w), true
}

// GetFloat returns a float. Integers are converted.
func (e *Engine) GetFloat(t Term) (float64, bool) {
	w := e.wordOf("GetFloat", t)
	switch {
	case w.isFloat():
		return e.floatValue(w), true
	case w.isInteger():
		n, b, ok := e.integerValue(w)
		if ok {
			return float64(n), true
		}
		f, _ := new(big.Float).SetInt(b).Float64()
		return f, true
	}
	return 0, false
}

// GetNameArity returns the name and arity of a compound, or the atom and 0.
func (e *Engine) GetNameArity(t Term) (Atom, int, bool) {
	w := e.wordOf("GetNameArity", t)
	switch {
	case w.isCompound():
		f := e.functorOf(w)
		return e.rt.FunctorName(f), e.rt.FunctorArity(f), true
	case w.isAtom():
		return w.atom(), 0, true
	}
	return 0, 0, false
}

// GetCompoundNameArity is GetNameArity for compounds only.
func (e *Engine) GetCompoundNameArity(t Term) (Atom, int, bool) {
	w := e.wordOf("GetCompoundNameArity", t)
	if !w.isCompound() {
		return 0, 0, false
	}
	f := e.functorOf(w)
	return e.rt.FunctorName(f), e.rt.FunctorArity(f), true
}

// GetFunctor returns the functor of a compound, or name/0 for an atom.
func (e *Engine) GetFunctor(t Term) (Functor, bool) {
	w := e.wordOf("GetFunctor", t)
	switch {
	case w.isCompound():
		return e.functorOf(w), true
	case w.isAtom():
		return e.rt.NewFunctor(w.atom(), 0), true
	}
	return 0, false
}

// GetArg makes a reference argument index (1-based) of compound t.
func (e *Engine) GetArg(index int, t, a Term) bool {
	w := e.wordOf("GetArg", t)
	e.validUser("GetArg", a)
	if !w.isCompound() || index < 1 || index > e.arityOf(w) {
		return false
	}
	e.setHandle(a, e.linkValNoG(argLoc(w, index-1)))
	return true
}

// GetBlob returns the payload and type of an atom.
func (e *Engine) GetBlob(t Term) ([]byte, BlobType, bool) {
	w := e.wordOf("GetBlob", t)
	if !w.isAtom() {
		return nil, nil, false
	}
	return e.rt.BlobData(w.atom())
}

// GetAttVar makes value hold the attribute value of attributed variable t.
func (e *Engine) GetAttVar(t, value Term) bool {
	w := e.wordOf("GetAttVar", t)
	e.validUser("GetAttVar", value)
	if !w.isAttVar() {
		return false
	}
	e.setHandle(value, e.linkValNoG(w.target()))
	return true
}

// SameCompound reports whether t1 and t2 are the same compound cell.
func (e *Engine) SameCompound(t1, t2 Term) bool {
	w1 := e.wordOf("SameCompound", t1)
	w2 := e.wordOf("SameCompound", t2)
	return w1.isCompound() && w1 == w2
}

// ---------------------------------------------------------------------------
// _ex accessors
// ---------------------------------------------------------------------------
//
// These raise an instantiation, type or representation error on mismatch
// and return false.

func (e *Engine) GetAtomEx(t Term) (Atom, bool) {
	if a, ok := e.GetAtom(t); ok {
		return a, true
	}
	return 0, e.TypeError(AtomAtom, t)
}

func (e *Engine) GetInt64Ex(t Term) (int64, bool) {
	if n, ok := e.GetInt64(t); ok {
		return n, true
	}
	if e.IsInteger(t) {
		return 0, e.RepresentationError(AtomInt64)
	}
	return 0, e.TypeError(AtomInteger, t)
}

func (e *Engine) GetIntegerEx(t Term) (int, bool) {
	if n, ok := e.GetInteger(t); ok {
		return n, true
	}
	if e.IsInteger(t) {
		return 0, e.RepresentationError(AtomInt)
	}
	return 0, e.TypeError(AtomInteger, t)
}

func (e *Engine) GetFloatEx(t Term) (float64, bool) {
	if f, ok := e.GetFloat(t); ok {
		return f, true
	}
	return 0, e.TypeError(AtomFloat, t)
}

func (e *Engine) GetBoolEx(t Term) (bool, bool) {
	if b, ok := e.GetBool(t); ok {
		return b, true
	}
	if e.IsAtom(t) {
		return false, e.DomainError(AtomBool, t)
	}
	return false, e.TypeError(AtomBool, t)
}

// GetArgEx is GetArg raising on a non-compound or an index out of range.
func (e *Engine) GetArgEx(index int, t, a Term) bool {
	if e.GetArg(index, t, a) {
		return true
	}
	if !e.IsCompound(t) {
		return e.TypeError(AtomCompound, t)
	}
	tmp := e.NewTermRef()
	if tmp == 0 {
		return false
	}
	e.PutInt64(tmp, int64(index))
	return e.DomainError(AtomNotLessThanZero, tmp)
}
