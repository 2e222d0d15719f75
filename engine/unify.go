package engine

import (
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// Unification
// ---------------------------------------------------------------------------

type locPair struct{ a, b loc }

// unify makes the terms at p1 and p2 equal. It works iteratively and
// remembers compound pairs already in progress, so cyclic terms terminate.
// On failure bindings made so far are left in place; callers undo them.
//
// Binding rules:
//   - var and var: the higher address is bound to the lower one; global
//     cells sort below local cells, so no global cell points into the
//     local stack
//   - var and attvar: the plain variable is bound to the attvar
//   - attvar and attvar: the younger (higher) is bound to the older and a
//     wakeup is queued
//   - attvar and value: the attvar is bound and a wakeup is queued
func (e *Engine) unify(p1, p2 loc) bool {
	var visited map[locPair]struct{}
	work := []locPair{{p1, p2}}

	for len(work) > 0 {
		pr := work[len(work)-1]
		work = work[:len(work)-1]
		a, wa := e.deref(pr.a)
		b, wb := e.deref(pr.b)
		if a == b {
			continue
		}

		if wa.isVar() {
			if wb.isVar() && a < b {
				if !e.bind(b, makeRef(a)) {
					return false
				}
				continue
			}
			if !e.bind(a, e.valueOf(b, wb)) {
				return false
			}
			continue
		}
		if wb.isVar() {
			if !e.bind(b, e.valueOf(a, wa)) {
				return false
			}
			continue
		}
		if wa.isAttVar() {
			if wb.isAttVar() && a < b {
				if !e.bindAttVar(b, makeRef(a)) {
					return false
				}
				continue
			}
			if !e.bindAttVar(a, e.valueOf(b, wb)) {
				return false
			}
			continue
		}
		if wb.isAttVar() {
			if !e.bindAttVar(b, wa) {
				return false
			}
			continue
		}

		if wa == wb {
			continue
		}
		if wa.tag() != wb.tag() {
			return false
		}
		switch {
		case wa.isIndirect():
			if wa.stg() != wb.stg() || !e.equalIndirect(wa, wb) {
				return false
			}
		case wa.isCompound():
			fa, fb := wa.target().index(), wb.target().index()
			if e.global.w[fa] != e.global.w[fb] {
				return false
			}
			key := locPair{gloc(fa), gloc(fb)}
			if visited == nil {
				visited = make(map[locPair]struct{})
			}
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}
			arity := e.rt.FunctorArity(e.global.w[fa].functor())
			for i := arity - 1; i >= 0; i-- {
				work = append(work, locPair{gloc(fa + 1 + i), gloc(fb + 1 + i)})
			}
		default:
			return false
		}
	}
	return true
}

// valueOf is the word to bind a variable to so it shares the dereferenced
// cell p holding w.
func (e *Engine) valueOf(p loc, w Word) Word {
	if w.canBind() {
		return makeRef(p)
	}
	return w
}

// Unify unifies t1 and t2. On failure all bindings it made are undone.
func (e *Engine) Unify(t1, t2 Term) bool {
	e.valid("Unify", t1)
	e.valid("Unify", t2)
	m := e.Mark()
	ok := e.unify(valTermRef(t1), valTermRef(t2))
	if !ok {
		e.Undo(m)
	}
	e.CommitMark(m)
	return ok
}

// UnifyOutput unifies an output argument t1 with t2. When t1 is unbound
// and t2 is not, it binds t1 directly without a choice mark.
func (e *Engine) UnifyOutput(t1, t2 Term) bool {
	e.valid("UnifyOutput", t1)
	e.valid("UnifyOutput", t2)
	p, w := e.handle(t1)
	if _, v := e.handle(t2); w.isVar() && !v.canBind() {
		return e.bind(p, v)
	}
	return e.Unify(t1, t2)
}

// unifyWord unifies the term of t with an atomic word that needs no
// linking. Boxed words are compared by content.
func (e *Engine) unifyWord(t Term, w Word) bool {
	p, v := e.handle(t)
	if v.canBind() {
		return e.bindVar(p, v, w)
	}
	if v == w {
		return true
	}
	if v.isIndirect() && w.isIndirect() && v.tag() == w.tag() {
		return e.equalIndirect(v, w)
	}
	return false
}

// UnifyAtom unifies t with a.
func (e *Engine) UnifyAtom(t Term, a Atom) bool {
	e.valid("UnifyAtom", t)
	e.checkAtom("UnifyAtom", a)
	return e.unifyWord(t, atomWord(a))
}

// UnifyAtomChars unifies t with the atom named s.
func (e *Engine) UnifyAtomChars(t Term, s string) bool {
	e.valid("UnifyAtomChars", t)
	a := e.rt.NewAtom(s)
	ok := e.unifyWord(t, atomWord(a))
	e.rt.UnregisterAtom(a)
	return ok
}

// UnifyNil unifies t with [].
func (e *Engine) UnifyNil(t Term) bool {
	e.valid("UnifyNil", t)
	return e.unifyWord(t, atomWord(AtomNil))
}

// UnifyBool unifies t with true or false. An atom on and off is also
// accepted when t is bound.
func (e *Engine) UnifyBool(t Term, b bool) bool {
	e.valid("UnifyBool", t)
	_, v := e.handle(t)
	if v.canBind() {
		if b {
			return e.unifyWord(t, atomWord(AtomTrue))
		}
		return e.unifyWord(t, atomWord(AtomFalse))
	}
	got, ok := e.GetBool(t)
	return ok && got == b
}

// UnifyInt64 unifies t with the integer n.
func (e *Engine) UnifyInt64(t Term, n int64) bool {
	e.valid("UnifyInt64", t)
	if w, ok := tryTaggedInt(n); ok {
		return e.unifyWord(t, w)
	}
	p, v := e.handle(t)
	if v.canBind() {
		w, ok := e.newInt64(n)
		if !ok {
			return false
		}
		p, v = e.handle(t)
		return e.bindVar(p, v, w)
	}
	if !v.isInteger() {
		return false
	}
	got, _, fits := e.integerValue(v)
	return fits && got == n
}

// UnifyInteger is UnifyInt64 for int.
func (e *Engine) UnifyInteger(t Term, n int) bool { return e.UnifyInt64(t, int64(n)) }

// UnifyUint64 unifies t with the unsigned integer n.
func (e *Engine) UnifyUint64(t Term, n uint64) bool {
	if n <= math.MaxInt64 {
		return e.UnifyInt64(t, int64(n))
	}
	return e.UnifyBigInt(t, new(big.Int).SetUint64(n))
}

// UnifyBigInt unifies t with the integer n.
func (e *Engine) UnifyBigInt(t Term, n *big.Int) bool {
	e.valid("UnifyBigInt", t)
	if n.IsInt64() {
		return e.UnifyInt64(t, n.Int64())
	}
	p, v := e.handle(t)
	if v.canBind() {
		w, ok := e.newBigInt(n)
		if !ok {
			return false
		}
		p, v = e.handle(t)
		return e.bindVar(p, v, w)
	}
	return v.isInteger() && e.bigValue(v).Cmp(n) == 0
}

// UnifyFloat unifies t with the float f.
func (e *Engine) UnifyFloat(t Term, f float64) bool {
	e.valid("UnifyFloat", t)
	p, v := e.handle(t)
	if v.canBind() {
		w, ok := e.newFloat(f)
		if !ok {
			return false
		}
		p, v = e.handle(t)
		return e.bindVar(p, v, w)
	}
	return v.isFloat() && math.Float64bits(e.floatValue(v)) == math.Float64bits(f)
}

// UnifyString unifies t with the string s.
func (e *Engine) UnifyString(t Term, s string) bool {
	e.valid("UnifyString", t)
	p, v := e.handle(t)
	if v.canBind() {
		w, ok := e.newString(s)
		if !ok {
			return false
		}
		p, v = e.handle(t)
		return e.bindVar(p, v, w)
	}
	return v.isString() && e.stringValue(v) == s
}

// UnifyCompound unifies t with a compound of functor f. If t is unbound it
// is bound to f with fresh arguments.
func (e *Engine) UnifyCompound(t Term, f Functor) bool {
	e.valid("UnifyCompound", t)
	e.checkFunctor("UnifyCompound", f)
	p, v := e.handle(t)
	if v.canBind() {
		arity := e.rt.FunctorArity(f)
		w, ok := e.newCompound(f, arity)
		if !ok {
			return false
		}
		p, v = e.handle(t)
		return e.bindVar(p, v, w)
	}
	return v.isCompound() && e.global.w[v.target().index()] == functorWord(f)
}

// UnifyFunctor is UnifyCompound, except that a functor of arity 0 unifies
// with its name atom.
func (e *Engine) UnifyFunctor(t Term, f Functor) bool {
	e.checkFunctor("UnifyFunctor", f)
	if e.rt.FunctorArity(f) == 0 {
		return e.UnifyAtom(t, e.rt.FunctorName(f))
	}
	return e.UnifyCompound(t, f)
}

// UnifyArg unifies argument index (1-based) of compound t with a.
func (e *Engine) UnifyArg(index int, t, a Term) bool {
	e.valid("UnifyArg", t)
	e.valid("UnifyArg", a)
	_, v := e.handle(t)
	if !v.isCompound() {
		return false
	}
	arity := e.rt.FunctorArity(e.global.w[v.target().index()].functor())
	if index < 1 || index > arity {
		return false
	}
	m := e.Mark()
	ok := e.unify(argLoc(v, index-1), valTermRef(a))
	if !ok {
		e.Undo(m)
	}
	e.CommitMark(m)
	return ok
}

// UnifyBlob unifies t with the blob for data of type typ.
func (e *Engine) UnifyBlob(t Term, data []byte, typ BlobType) bool {
	e.valid("UnifyBlob", t)
	a, _ := e.rt.NewBlob(data, typ)
	ok := e.unifyWord(t, atomWord(a))
	e.rt.UnregisterAtom(a)
	return ok
}

// UnifyInt64Ex is UnifyInt64 raising a type error if t is bound to a
// non-integer.
func (e *Engine) UnifyInt64Ex(t Term, n int64) bool {
	if e.UnifyInt64(t, n) {
		return true
	}
	if _, v := e.handle(t); !v.isInteger() && !e.HasException() {
		return e.TypeError(AtomInteger, t)
	}
	return false
}
