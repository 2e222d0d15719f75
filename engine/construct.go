package engine

import (
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// PUT: native values into term references
// ---------------------------------------------------------------------------
//
// Every Put overwrites the slot of the handle without unifying. Functions
// that allocate may grow the stacks; on exhaustion they raise a resource
// error and return false.

// PutVariable makes t a fresh variable.
func (e *Engine) PutVariable(t Term) bool {
	e.validUser("PutVariable", t)
	i, ok := e.allocGlobal(1)
	if !ok {
		return false
	}
	e.setHandle(t, makeRef(gloc(i)))
	return true
}

// PutAtom makes t the atom a.
func (e *Engine) PutAtom(t Term, a Atom) bool {
	e.validUser("PutAtom", t)
	e.checkAtom("PutAtom", a)
	e.setHandle(t, atomWord(a))
	return true
}

// PutAtomChars makes t the atom named s.
func (e *Engine) PutAtomChars(t Term, s string) bool {
	e.validUser("PutAtomChars", t)
	a := e.rt.NewAtom(s)
	e.setHandle(t, atomWord(a))
	e.rt.UnregisterAtom(a)
	return true
}

// PutBlob makes t the blob atom for data of type typ. It reports whether a
// new atom was created.
func (e *Engine) PutBlob(t Term, data []byte, typ BlobType) bool {
	e.validUser("PutBlob", t)
	a, created := e.rt.NewBlob(data, typ)
	e.setHandle(t, atomWord(a))
	e.rt.UnregisterAtom(a)
	return created
}

// PutBool makes t the atom true or false.
func (e *Engine) PutBool(t Term, b bool) bool {
	if b {
		return e.PutAtom(t, AtomTrue)
	}
	return e.PutAtom(t, AtomFalse)
}

// PutNil makes t the empty list.
func (e *Engine) PutNil(t Term) bool {
	return e.PutAtom(t, AtomNil)
}

// PutInt64 makes t the integer n.
func (e *Engine) PutInt64(t Term, n int64) bool {
	e.validUser("PutInt64", t)
	w, ok := e.newInt64(n)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutInteger is PutInt64 for int.
func (e *Engine) PutInteger(t Term, n int) bool { return e.PutInt64(t, int64(n)) }

// PutUint64 makes t the integer n. Values above math.MaxInt64 need
// multi-precision integers.
func (e *Engine) PutUint64(t Term, n uint64) bool {
	if n <= math.MaxInt64 {
		return e.PutInt64(t, int64(n))
	}
	return e.PutBigInt(t, new(big.Int).SetUint64(n))
}

// PutBigInt makes t the integer n.
func (e *Engine) PutBigInt(t Term, n *big.Int) bool {
	e.validUser("PutBigInt", t)
	w, ok := e.newBigInt(n)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutFloat makes t the float f.
func (e *Engine) PutFloat(t Term, f float64) bool {
	e.validUser("PutFloat", t)
	w, ok := e.newFloat(f)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutString makes t the string s.
func (e *Engine) PutString(t Term, s string) bool {
	e.validUser("PutString", t)
	w, ok := e.newString(s)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutTerm makes t1 share the value of t2.
func (e *Engine) PutTerm(t1, t2 Term) bool {
	e.validUser("PutTerm", t1)
	e.valid("PutTerm", t2)
	w, ok := e.linkVal(valTermRef(t2))
	if !ok {
		return false
	}
	e.setHandle(t1, w)
	return true
}

// PutFunctor makes t a new compound f with unbound arguments. Arity 0
// functors produce their name atom.
func (e *Engine) PutFunctor(t Term, f Functor) bool {
	e.validUser("PutFunctor", t)
	e.checkFunctor("PutFunctor", f)
	arity := e.rt.FunctorArity(f)
	if arity == 0 {
		e.setHandle(t, atomWord(e.rt.FunctorName(f)))
		return true
	}
	w, ok := e.newCompound(f, arity)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutList makes l a new list cell with unbound head and tail.
func (e *Engine) PutList(l Term) bool {
	return e.PutFunctor(l, FunctorDot2)
}

// newCompound allocates f with unbound arguments.
func (e *Engine) newCompound(f Functor, arity int) (Word, bool) {
	i, ok := e.allocGlobal(1 + arity)
	if !ok {
		return 0, false
	}
	e.global.w[i] = functorWord(f)
	return compoundWord(i), true
}

// PutAttVar makes t a new attributed variable whose attribute value is the
// value of attrs.
func (e *Engine) PutAttVar(t, attrs Term) bool {
	e.validUser("PutAttVar", t)
	e.valid("PutAttVar", attrs)
	if !e.Globalize(attrs) {
		return false
	}
	i, ok := e.allocGlobal(2)
	if !ok {
		return false
	}
	v, ok := e.linkVal(valTermRef(attrs))
	if !ok {
		return false
	}
	e.global.w[i] = attVarWord(i + 1)
	e.global.w[i+1] = v
	e.setHandle(t, makeRef(gloc(i)))
	return true
}

// ---------------------------------------------------------------------------
// CONS: build compounds from argument handles
// ---------------------------------------------------------------------------

// ConsFunctor makes h the compound f(args...). The number of args must match
// the arity of f.
func (e *Engine) ConsFunctor(h Term, f Functor, args ...Term) bool {
	e.valid("ConsFunctor", h)
	e.checkFunctor("ConsFunctor", f)
	arity := e.rt.FunctorArity(f)
	if len(args) != arity {
		apiError("ConsFunctor", "arity mismatch: %d arguments for arity %d", len(args), arity)
	}
	for _, a := range args {
		e.valid("ConsFunctor", a)
	}
	return e.consFunctor(h, f, arity, func(k int) Term { return args[k] })
}

// ConsFunctorV is ConsFunctor with the arguments in consecutive handles
// starting at a0.
func (e *Engine) ConsFunctorV(h Term, f Functor, a0 Term) bool {
	e.valid("ConsFunctorV", h)
	e.checkFunctor("ConsFunctorV", f)
	arity := e.rt.FunctorArity(f)
	for k := 0; k < arity; k++ {
		e.valid("ConsFunctorV", a0+Term(k))
	}
	return e.consFunctor(h, f, arity, func(k int) Term { return a0 + Term(k) })
}

func (e *Engine) consFunctor(h Term, f Functor, arity int, arg func(int) Term) bool {
	if arity == 0 {
		e.setHandle(h, atomWord(e.rt.FunctorName(f)))
		return true
	}
	if !e.ensureGlobal(1+arity) || !e.ensureTrail(arity) {
		return false
	}
	i, _ := e.allocGlobal(1 + arity)
	e.global.w[i] = functorWord(f)
	for k := 0; k < arity; k++ {
		e.bindConsVal(i+1+k, valTermRef(arg(k)))
	}
	e.setHandle(h, compoundWord(i))
	return true
}

// ConsList makes l the list cell [head|tail].
func (e *Engine) ConsList(l, head, tail Term) bool {
	e.valid("ConsList", l)
	e.valid("ConsList", head)
	e.valid("ConsList", tail)
	return e.consFunctor(l, FunctorDot2, 2, func(k int) Term {
		if k == 0 {
			return head
		}
		return tail
	})
}

// ConsListV makes list the proper list of the values of elems.
func (e *Engine) ConsListV(list Term, elems []Term) bool {
	e.valid("ConsListV", list)
	if len(elems) == 0 {
		e.setHandle(list, atomWord(AtomNil))
		return true
	}
	for _, el := range elems {
		e.valid("ConsListV", el)
	}
	n := len(elems)
	if !e.ensureGlobal(3*n) || !e.ensureTrail(n) {
		return false
	}
	start, _ := e.allocGlobal(3 * n)
	for k, el := range elems {
		p := start + 3*k
		e.global.w[p] = functorWord(FunctorDot2)
		e.bindConsVal(p+1, valTermRef(el))
		if k < n-1 {
			e.global.w[p+2] = compoundWord(p + 3)
		} else {
			e.global.w[p+2] = atomWord(AtomNil)
		}
	}
	e.setHandle(list, compoundWord(start))
	return true
}

// ---------------------------------------------------------------------------
// Atom and functor checks
// ---------------------------------------------------------------------------

func (e *Engine) checkAtom(op string, a Atom) {
	if e.validate && !e.rt.atoms.Valid(a) {
		apiError(op, "invalid atom %d", a)
	}
}

func (e *Engine) checkFunctor(op string, f Functor) {
	if e.validate && !e.rt.ValidFunctor(f) {
		apiError(op, "invalid functor %d", f)
	}
}
