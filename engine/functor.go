package engine

import "sync"

// Functor is a handle to an interned (name, arity) pair. Functors are never
// destroyed. The zero Functor is invalid.
type Functor uint32

// Builtin functors, interned in this order by every Runtime.
const (
	FunctorNone Functor = iota
	FunctorDot2
	FunctorError2
	FunctorResourceError1
	FunctorTypeError2
	FunctorDomainError2
	FunctorRepresentationError1
	FunctorExistenceError2
	FunctorPermissionError3
	FunctorUninstantiationError1
	FunctorEvaluationError1
	FunctorTimeLimitExceeded1
	FunctorUnwind1
	FunctorHalt1
	FunctorThreadExit1
	FunctorContext2
	FunctorColon2
	FunctorStackOverflow2
	FunctorMinus2
	builtinFunctorCount
)

var builtinFunctors = [builtinFunctorCount]struct {
	name  Atom
	arity int
}{
	FunctorDot2:                  {AtomDot, 2},
	FunctorError2:                {AtomError, 2},
	FunctorResourceError1:        {AtomResourceError, 1},
	FunctorTypeError2:            {AtomTypeError, 2},
	FunctorDomainError2:          {AtomDomainError, 2},
	FunctorRepresentationError1:  {AtomRepresentationError, 1},
	FunctorExistenceError2:       {AtomExistenceError, 2},
	FunctorPermissionError3:      {AtomPermissionError, 3},
	FunctorUninstantiationError1: {AtomUninstantiationError, 1},
	FunctorEvaluationError1:      {AtomEvaluationError, 1},
	FunctorTimeLimitExceeded1:    {AtomTimeLimitExceeded, 1},
	FunctorUnwind1:               {AtomUnwind, 1},
	FunctorHalt1:                 {AtomHalt, 1},
	FunctorThreadExit1:           {AtomThreadExit, 1},
	FunctorContext2:              {AtomContext, 2},
	FunctorColon2:                {AtomColon, 2},
	FunctorStackOverflow2:        {AtomStackOverflow, 2},
	FunctorMinus2:                {AtomMinus, 2},
}

type functorKey struct {
	name  Atom
	arity int
}

type functorDef struct {
	name  Atom
	arity int
}

// FunctorTable interns functors. The table only grows.
type FunctorTable struct {
	mu    sync.RWMutex
	defs  []functorDef
	byKey map[functorKey]Functor
}

// NewFunctorTable creates a table holding the builtin functors.
func NewFunctorTable() *FunctorTable {
	ft := &FunctorTable{
		defs:  make([]functorDef, builtinFunctorCount, 256),
		byKey: make(map[functorKey]Functor, 256),
	}
	for i := 1; i < int(builtinFunctorCount); i++ {
		b := builtinFunctors[i]
		ft.defs[i] = functorDef{name: b.name, arity: b.arity}
		ft.byKey[functorKey{b.name, b.arity}] = Functor(i)
	}
	return ft
}

// Lookup returns the functor for name/arity, creating it if needed. The
// second result reports whether it was created, in which case the caller
// owns registering the name atom.
func (ft *FunctorTable) Lookup(name Atom, arity int) (Functor, bool) {
	key := functorKey{name, arity}

	ft.mu.RLock()
	if f, ok := ft.byKey[key]; ok {
		ft.mu.RUnlock()
		return f, false
	}
	ft.mu.RUnlock()

	ft.mu.Lock()
	defer ft.mu.Unlock()

	if f, ok := ft.byKey[key]; ok {
		return f, false
	}
	f := Functor(len(ft.defs))
	ft.defs = append(ft.defs, functorDef{name: name, arity: arity})
	ft.byKey[key] = f
	return f, true
}

func (ft *FunctorTable) def(f Functor) (functorDef, bool) {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	if f == FunctorNone || int(f) >= len(ft.defs) {
		return functorDef{}, false
	}
	return ft.defs[f], true
}

// Len returns the number of interned functors.
func (ft *FunctorTable) Len() int {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return len(ft.defs) - 1
}

// each calls fn for every functor name. Used by atom GC marking.
func (ft *FunctorTable) each(fn func(Atom)) {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	for _, d := range ft.defs[1:] {
		fn(d.name)
	}
}

// ---------------------------------------------------------------------------
// Runtime functor API
// ---------------------------------------------------------------------------

// NewFunctor interns name/arity.
func (rt *Runtime) NewFunctor(name Atom, arity int) Functor {
	f, created := rt.functors.Lookup(name, arity)
	if created {
		rt.atoms.Register(name)
	}
	return f
}

// NewFunctorChars interns a functor from its name text.
func (rt *Runtime) NewFunctorChars(name string, arity int) Functor {
	a := rt.atoms.Intern(name)
	f := rt.NewFunctor(a, arity)
	rt.atoms.Unregister(a)
	return f
}

// FunctorName returns the name atom of f.
func (rt *Runtime) FunctorName(f Functor) Atom {
	d, _ := rt.functors.def(f)
	return d.name
}

// FunctorArity returns the arity of f.
func (rt *Runtime) FunctorArity(f Functor) int {
	d, _ := rt.functors.def(f)
	return d.arity
}

// ValidFunctor reports whether f names an interned functor.
func (rt *Runtime) ValidFunctor(f Functor) bool {
	_, ok := rt.functors.def(f)
	return ok
}
