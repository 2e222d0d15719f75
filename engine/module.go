package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Modules and foreign predicates
// ---------------------------------------------------------------------------

// PredFlags describe how a foreign predicate is called.
type PredFlags uint32

const (
	// PredNoTrace hides the predicate from the debugger.
	PredNoTrace PredFlags = 1 << iota
	// PredTransparent runs the predicate in the caller's context module.
	PredTransparent
	// PredNondeterministic predicates may succeed more than once; they are
	// called again with Redo and finally with Pruned.
	PredNondeterministic
	// PredVarArgs marks the argument-vector calling convention. Every Go
	// foreign function receives its arguments as a vector.
	PredVarArgs
	// PredSigAtomic defers signal handling while the predicate runs.
	PredSigAtomic
)

func (f PredFlags) String() string {
	names := []struct {
		flag PredFlags
		name string
	}{
		{PredNoTrace, "notrace"},
		{PredTransparent, "transparent"},
		{PredNondeterministic, "nondeterministic"},
		{PredVarArgs, "varargs"},
		{PredSigAtomic, "sig_atomic"},
	}
	s := ""
	for _, n := range names {
		if f&n.flag != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// ForeignFunc implements a foreign predicate. args is the first of Arity
// consecutive argument handles. It returns true on success; on an error it
// raises an exception and returns false.
type ForeignFunc func(e *Engine, args Term, fc *ForeignContext) bool

// Predicate is a foreign predicate bound in a module.
type Predicate struct {
	Module  *Module
	Name    Atom
	Arity   int
	Functor Functor
	Flags   PredFlags
	Func    ForeignFunc

	abolished atomic.Bool
}

// Indicator returns module:name/arity.
func (p *Predicate) Indicator(rt *Runtime) string {
	return fmt.Sprintf("%s:%s/%d", rt.AtomName(p.Module.Name), rt.AtomName(p.Name), p.Arity)
}

// Abolished reports whether the predicate was replaced or removed.
func (p *Predicate) Abolished() bool { return p.abolished.Load() }

// Module is a named predicate table.
type Module struct {
	Name Atom

	mu    sync.RWMutex
	preds map[Functor]*Predicate
}

// Module returns the module called name, creating it if needed. The empty
// name selects user.
func (rt *Runtime) Module(name string) *Module {
	if name == "" {
		name = "user"
	}
	a := rt.NewAtom(name)

	rt.modMu.RLock()
	m, ok := rt.modules[a]
	rt.modMu.RUnlock()
	if ok {
		rt.UnregisterAtom(a)
		return m
	}

	rt.modMu.Lock()
	defer rt.modMu.Unlock()
	if m, ok := rt.modules[a]; ok {
		rt.UnregisterAtom(a)
		return m
	}
	m = &Module{Name: a, preds: make(map[Functor]*Predicate)}
	rt.modules[a] = m
	return m
}

// LookupModule returns an existing module.
func (rt *Runtime) LookupModule(name string) (*Module, bool) {
	a, ok := rt.atoms.Lookup(name)
	if !ok {
		return nil, false
	}
	rt.modMu.RLock()
	defer rt.modMu.RUnlock()
	m, ok := rt.modules[a]
	return m, ok
}

// Modules returns the names of all modules, sorted.
func (rt *Runtime) Modules() []string {
	rt.modMu.RLock()
	names := make([]string, 0, len(rt.modules))
	for a := range rt.modules {
		names = append(names, rt.AtomName(a))
	}
	rt.modMu.RUnlock()
	sort.Strings(names)
	return names
}

// Lookup returns the predicate name/arity of m.
func (m *Module) Lookup(f Functor) (*Predicate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.preds[f]
	return p, ok
}

// Predicates returns the predicates of m.
func (m *Module) Predicates() []*Predicate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Predicate, 0, len(m.preds))
	for _, p := range m.preds {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Functor < out[j].Functor })
	return out
}

// Predicate finds module:name/arity.
func (rt *Runtime) Predicate(module, name string, arity int) (*Predicate, bool) {
	m, ok := rt.LookupModule(module)
	if !ok {
		return nil, false
	}
	a, ok := rt.atoms.Lookup(name)
	if !ok {
		return nil, false
	}
	f, _ := rt.functors.Lookup(a, arity)
	return m.Lookup(f)
}

// RegisterForeign binds fn as module:name/arity. An existing definition is
// abolished first; callers holding the old *Predicate see Abolished.
func (rt *Runtime) RegisterForeign(module, name string, arity int, fn ForeignFunc, flags PredFlags) (*Predicate, error) {
	if fn == nil {
		return nil, fmt.Errorf("register %s/%d: nil function", name, arity)
	}
	if arity < 0 {
		return nil, fmt.Errorf("register %s/%d: negative arity", name, arity)
	}
	if name == "" {
		return nil, fmt.Errorf("register: empty predicate name")
	}

	m := rt.Module(module)
	a := rt.NewAtom(name)
	f := rt.NewFunctor(a, arity)
	p := &Predicate{Module: m, Name: a, Arity: arity, Functor: f, Flags: flags, Func: fn}

	m.mu.Lock()
	old, exists := m.preds[f]
	if exists {
		old.abolished.Store(true)
	}
	m.preds[f] = p
	m.mu.Unlock()

	if exists {
		log.Infof("abolished %s before re-registration", old.Indicator(rt))
		rt.UnregisterAtom(a)
	}
	log.Debugf("registered foreign %s [%s]", p.Indicator(rt), flags)
	if rt.OnForeignRegistered != nil {
		rt.OnForeignRegistered(p)
	}
	return p, nil
}

// Abolish removes module:name/arity.
func (rt *Runtime) Abolish(module, name string, arity int) bool {
	p, ok := rt.Predicate(module, name, arity)
	if !ok {
		return false
	}
	p.Module.mu.Lock()
	delete(p.Module.preds, p.Functor)
	p.abolished.Store(true)
	p.Module.mu.Unlock()
	log.Infof("abolished %s", p.Indicator(rt))
	return true
}

// Extension is one entry of a RegisterExtensions table.
type Extension struct {
	Name  string
	Arity int
	Func  ForeignFunc
	Flags PredFlags
}

// RegisterExtensions registers a table of foreign predicates in module.
// It stops at the first invalid entry.
func (rt *Runtime) RegisterExtensions(module string, exts []Extension) error {
	for _, x := range exts {
		if _, err := rt.RegisterForeign(module, x.Name, x.Arity, x.Func, x.Flags); err != nil {
			return fmt.Errorf("register extensions in %s: %w", module, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Module qualification
// ---------------------------------------------------------------------------

// moduleOf returns the module named by the text atom a, creating it if
// needed.
func (rt *Runtime) moduleOf(a Atom) (*Module, bool) {
	name, ok := rt.AtomText(a)
	if !ok || name == "" {
		return nil, false
	}
	return rt.Module(name), true
}

// ContextModule returns the context module of the innermost open query,
// or user outside any query.
func (e *Engine) ContextModule() *Module {
	if e.query != nil && e.query.fc.Module != nil {
		return e.query.fc.Module
	}
	return e.rt.Module("user")
}

// StripModule removes the Module: qualifiers in front of raw and makes
// plain the remaining term. The innermost qualifier names the returned
// module; an unqualified term yields the context module. Stripping stops
// at a qualifier that is not an atom, so plain keeps it.
func (e *Engine) StripModule(raw, plain Term) (*Module, bool) {
	e.valid("StripModule", raw)
	e.validUser("StripModule", plain)
	var m *Module
	p := valTermRef(raw)
	for {
		_, w := e.deref(p)
		if !w.isCompound() || e.functorOf(w) != FunctorColon2 {
			break
		}
		_, mw := e.deref(argLoc(w, 0))
		if !mw.isAtom() {
			break
		}
		qm, ok := e.rt.moduleOf(mw.atom())
		if !ok {
			break
		}
		m = qm
		p = argLoc(w, 1)
	}
	if m == nil {
		m = e.ContextModule()
	}
	w, ok := e.linkVal(p)
	if !ok {
		return nil, false
	}
	e.setHandle(plain, w)
	return m, true
}

// GetModule returns the module named by the atom t, creating it if needed.
func (e *Engine) GetModule(t Term) (*Module, bool) {
	w := e.wordOf("GetModule", t)
	if !w.isAtom() {
		return nil, false
	}
	return e.rt.moduleOf(w.atom())
}

// Qualify makes qualified the term Module:Plain, where StripModule splits
// t into Module and Plain.
func (e *Engine) Qualify(t, qualified Term) bool {
	e.valid("Qualify", t)
	e.validUser("Qualify", qualified)
	plain := e.NewTermRefs(2)
	if plain == 0 {
		return false
	}
	mod := plain + 1
	defer e.ResetTermRefs(plain)

	m, ok := e.StripModule(t, plain)
	if !ok {
		return false
	}
	e.PutAtom(mod, m.Name)
	return e.ConsFunctor(qualified, FunctorColon2, mod, plain)
}

// UnifyModule unifies t with the name of m.
func (e *Engine) UnifyModule(t Term, m *Module) bool {
	return e.UnifyAtom(t, m.Name)
}
