package engine

import "errors"

// Sentinel errors returned at the Go boundary.
var (
	// ErrException is returned by query operations that ended in a Prolog
	// exception. The exception term is available from the query or engine.
	ErrException = errors.New("prolog exception")

	// ErrForeignLeftException reports a foreign predicate that succeeded
	// while an exception was pending.
	ErrForeignLeftException = errors.New("foreign predicate succeeded with a pending exception")

	// ErrDictKey reports a dict key that is neither an atom nor a small
	// integer.
	ErrDictKey = errors.New("invalid dict key")

	// ErrDictOrder reports dict keys that are duplicated or out of canonical
	// order.
	ErrDictOrder = errors.New("dict keys not in canonical order")

	// ErrCyclicTerm reports an attempt to record a cyclic term.
	ErrCyclicTerm = errors.New("cannot record a cyclic term")

	// ErrRecordErased reports use of an erased record.
	ErrRecordErased = errors.New("record is erased")
)

// ---------------------------------------------------------------------------
// ISO error terms
// ---------------------------------------------------------------------------
//
// Each constructor raises error(Formal, Context) and returns false, so a
// foreign predicate can write `return e.TypeError(AtomInteger, t)`. Context
// is context(Name/Arity, _) inside a foreign call, else unbound.

// buildCompound allocates f(args...) on the global stack. Arguments must
// already be safe to store globally.
func (e *Engine) buildCompound(f Functor, args ...Word) (Word, bool) {
	i, ok := e.allocGlobal(1 + len(args))
	if !ok {
		return 0, false
	}
	e.global.w[i] = functorWord(f)
	copy(e.global.w[i+1:], args)
	return compoundWord(i), true
}

// dropped reports whether raise would discard an error of class c. The
// constructors check it before allocating anything.
func (e *Engine) dropped(c ExceptClass) bool {
	return e.processing || e.pendingOutranks(c)
}

func (e *Engine) culprit(t Term) (Word, bool) {
	return e.linkVal(valTermRef(t))
}

func (e *Engine) errorContext() (Word, bool) {
	if e.env == nil || e.env.pred == nil {
		return 0, true
	}
	p := e.env.pred
	slash := e.rt.NewFunctorChars("/", 2)
	pi, ok := e.buildCompound(slash, atomWord(p.Name), taggedInt(int64(p.Arity)))
	if !ok {
		return 0, false
	}
	return e.buildCompound(FunctorContext2, pi, 0)
}

// raiseError raises error(formal, context).
func (e *Engine) raiseError(formal Word) bool {
	ctx, ok := e.errorContext()
	if !ok {
		return false
	}
	w, ok := e.buildCompound(FunctorError2, formal, ctx)
	if !ok {
		return false
	}
	e.local.w[tmpSlot] = w
	e.raise(lloc(tmpSlot))
	e.local.w[tmpSlot] = 0
	return false
}

func (e *Engine) raiseFormal(f Functor, args ...Word) bool {
	c := ExceptError
	if f == FunctorResourceError1 {
		c = ExceptResource
	}
	if e.dropped(c) {
		return false
	}
	formal, ok := e.buildCompound(f, args...)
	if !ok {
		return false
	}
	return e.raiseError(formal)
}

// InstantiationError raises error(instantiation_error, _).
func (e *Engine) InstantiationError() bool {
	if e.dropped(ExceptError) {
		return false
	}
	return e.raiseError(atomWord(AtomInstantiationError))
}

// UninstantiationError raises error(uninstantiation_error(Culprit), _).
func (e *Engine) UninstantiationError(culprit Term) bool {
	if e.dropped(ExceptError) {
		return false
	}
	c, ok := e.culprit(culprit)
	if !ok {
		return false
	}
	return e.raiseFormal(FunctorUninstantiationError1, c)
}

// TypeError raises error(type_error(Expected, Culprit), _). An unbound
// culprit raises an instantiation error instead.
func (e *Engine) TypeError(expected Atom, culprit Term) bool {
	if e.dropped(ExceptError) {
		return false
	}
	if _, w := e.handle(culprit); w.canBind() {
		return e.InstantiationError()
	}
	c, ok := e.culprit(culprit)
	if !ok {
		return false
	}
	return e.raiseFormal(FunctorTypeError2, atomWord(expected), c)
}

// DomainError raises error(domain_error(Domain, Culprit), _). An unbound
// culprit raises an instantiation error instead.
func (e *Engine) DomainError(domain Atom, culprit Term) bool {
	if e.dropped(ExceptError) {
		return false
	}
	if _, w := e.handle(culprit); w.canBind() {
		return e.InstantiationError()
	}
	c, ok := e.culprit(culprit)
	if !ok {
		return false
	}
	return e.raiseFormal(FunctorDomainError2, atomWord(domain), c)
}

// RepresentationError raises error(representation_error(What), _).
func (e *Engine) RepresentationError(what Atom) bool {
	return e.raiseFormal(FunctorRepresentationError1, atomWord(what))
}

// ResourceError raises error(resource_error(What), _).
func (e *Engine) ResourceError(what Atom) bool {
	return e.raiseFormal(FunctorResourceError1, atomWord(what))
}

// ExistenceError raises error(existence_error(Kind, Culprit), _).
func (e *Engine) ExistenceError(kind Atom, culprit Term) bool {
	if e.dropped(ExceptError) {
		return false
	}
	c, ok := e.culprit(culprit)
	if !ok {
		return false
	}
	return e.raiseFormal(FunctorExistenceError2, atomWord(kind), c)
}

// PermissionError raises error(permission_error(Action, Kind, Culprit), _).
func (e *Engine) PermissionError(action, kind Atom, culprit Term) bool {
	if e.dropped(ExceptError) {
		return false
	}
	c, ok := e.culprit(culprit)
	if !ok {
		return false
	}
	return e.raiseFormal(FunctorPermissionError3, atomWord(action), atomWord(kind), c)
}

// EvaluationError raises error(evaluation_error(What), _).
func (e *Engine) EvaluationError(what Atom) bool {
	return e.raiseFormal(FunctorEvaluationError1, atomWord(what))
}
