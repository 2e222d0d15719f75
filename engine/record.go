package engine

import (
	"fmt"
	"math/big"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Records: terms stored outside the stacks
// ---------------------------------------------------------------------------
//
// A record is the preorder cell list of a term. Variables are numbered in
// order of first occurrence; a compound cell is followed by its arguments
// and an attributed variable cell by its attribute value. Records hold a
// reference on every atom they contain.

// CellKind identifies a record cell.
type CellKind uint8

const (
	CellVar CellKind = iota + 1
	CellAttVar
	CellAtom
	CellInt
	CellBigInt
	CellFloat
	CellString
	CellCompound
)

func (k CellKind) String() string {
	switch k {
	case CellVar:
		return "var"
	case CellAttVar:
		return "attvar"
	case CellAtom:
		return "atom"
	case CellInt:
		return "int"
	case CellBigInt:
		return "bigint"
	case CellFloat:
		return "float"
	case CellString:
		return "string"
	case CellCompound:
		return "compound"
	}
	return "invalid"
}

// Cell is one node of a recorded term.
type Cell struct {
	Kind CellKind
	// Int is the value of CellInt and the variable number of CellVar and
	// CellAttVar.
	Int     int64
	Float   float64
	Text    string
	Big     *big.Int
	Atom    Atom
	Functor Functor
}

// Record is a term copied out of an engine. It can be instantiated in any
// engine of the same runtime until erased.
type Record struct {
	rt     *Runtime
	cells  []Cell
	vars   int
	erased atomic.Bool
}

// Cells returns a copy of the preorder cell list.
func (r *Record) Cells() []Cell { return append([]Cell(nil), r.cells...) }

// Vars returns the number of distinct variables.
func (r *Record) Vars() int { return r.vars }

// Erased reports whether the record was erased.
func (r *Record) Erased() bool { return r.erased.Load() }

// Record copies t into a new record. Cyclic terms are rejected.
func (e *Engine) Record(t Term) (*Record, error) {
	e.valid("Record", t)
	p := valTermRef(t)
	if !e.acyclic(p) {
		return nil, ErrCyclicTerm
	}
	r := &Record{rt: e.rt}
	vars := make(map[loc]int64)
	work := []loc{p}
	for len(work) > 0 {
		q, w := e.deref(work[len(work)-1])
		work = work[:len(work)-1]
		switch {
		case w.canBind():
			if n, seen := vars[q]; seen {
				r.cells = append(r.cells, Cell{Kind: CellVar, Int: n})
				continue
			}
			n := int64(len(vars))
			vars[q] = n
			if w.isAttVar() {
				r.cells = append(r.cells, Cell{Kind: CellAttVar, Int: n})
				work = append(work, w.target())
			} else {
				r.cells = append(r.cells, Cell{Kind: CellVar, Int: n})
			}
		case w.isAtom():
			r.cells = append(r.cells, Cell{Kind: CellAtom, Atom: w.atom()})
		case w.isInteger():
			if n, b, ok := e.integerValue(w); ok {
				r.cells = append(r.cells, Cell{Kind: CellInt, Int: n})
			} else {
				r.cells = append(r.cells, Cell{Kind: CellBigInt, Big: b})
			}
		case w.isFloat():
			r.cells = append(r.cells, Cell{Kind: CellFloat, Float: e.floatValue(w)})
		case w.isString():
			r.cells = append(r.cells, Cell{Kind: CellString, Text: e.stringValue(w)})
		case w.isCompound():
			f := e.functorOf(w)
			r.cells = append(r.cells, Cell{Kind: CellCompound, Functor: f})
			for i := e.rt.FunctorArity(f) - 1; i >= 0; i-- {
				work = append(work, argLoc(w, i))
			}
		}
	}
	r.vars = len(vars)
	e.rt.addRecord(r)
	return r, nil
}

// NewRecord builds a record from a cell list, as produced by Cells. The
// list must describe exactly one well-formed term.
func (rt *Runtime) NewRecord(cells []Cell) (*Record, error) {
	need := 1
	vars := 0
	for i, c := range cells {
		if need == 0 {
			return nil, fmt.Errorf("new record: trailing cells at %d", i)
		}
		need--
		switch c.Kind {
		case CellVar, CellAttVar:
			if c.Int < 0 || c.Int > int64(vars) {
				return nil, fmt.Errorf("new record: cell %d: variable %d out of order", i, c.Int)
			}
			if c.Int == int64(vars) {
				vars++
			} else if c.Kind == CellAttVar {
				return nil, fmt.Errorf("new record: cell %d: attributed variable %d repeated", i, c.Int)
			}
			if c.Kind == CellAttVar {
				need++
			}
		case CellAtom:
			if !rt.atoms.Valid(c.Atom) {
				return nil, fmt.Errorf("new record: cell %d: invalid atom %d", i, c.Atom)
			}
		case CellBigInt:
			if c.Big == nil {
				return nil, fmt.Errorf("new record: cell %d: missing big integer", i)
			}
		case CellInt, CellFloat, CellString:
		case CellCompound:
			if !rt.ValidFunctor(c.Functor) {
				return nil, fmt.Errorf("new record: cell %d: invalid functor %d", i, c.Functor)
			}
			need += rt.FunctorArity(c.Functor)
		default:
			return nil, fmt.Errorf("new record: cell %d: invalid kind %d", i, c.Kind)
		}
	}
	if need != 0 {
		return nil, fmt.Errorf("new record: %d cells missing", need)
	}
	r := &Record{rt: rt, cells: append([]Cell(nil), cells...), vars: vars}
	rt.addRecord(r)
	return r, nil
}

// DuplicateRecord returns an independent copy of r.
func (rt *Runtime) DuplicateRecord(r *Record) (*Record, error) {
	if r.Erased() {
		return nil, ErrRecordErased
	}
	d := &Record{rt: rt, cells: append([]Cell(nil), r.cells...), vars: r.vars}
	rt.addRecord(d)
	return d, nil
}

// Erase releases r and the atoms it holds. Erasing twice is a no-op.
func (rt *Runtime) Erase(r *Record) {
	if r.erased.Swap(true) {
		return
	}
	rt.recMu.Lock()
	delete(rt.records, r)
	rt.recMu.Unlock()
	r.eachAtom(rt.atoms.Unregister)
}

// Records returns the number of live records.
func (rt *Runtime) Records() int {
	rt.recMu.Lock()
	defer rt.recMu.Unlock()
	return len(rt.records)
}

func (rt *Runtime) addRecord(r *Record) {
	r.eachAtom(rt.atoms.Register)
	rt.recMu.Lock()
	rt.records[r] = struct{}{}
	rt.recMu.Unlock()
}

func (r *Record) eachAtom(fn func(Atom)) {
	for _, c := range r.cells {
		if c.Kind == CellAtom {
			fn(c.Atom)
		}
	}
}

// Recorded puts a fresh instance of r into t. It returns false with an
// exception pending if the stacks are exhausted.
func (e *Engine) Recorded(r *Record, t Term) bool {
	e.validUser("Recorded", t)
	if r.Erased() {
		apiError("Recorded", "record is erased")
	}
	if r.rt != e.rt {
		apiError("Recorded", "record belongs to another runtime")
	}
	w, ok := e.rebuild(r)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// rebuild instantiates r on the global stack. Cells are only addressed by
// index since allocation may grow the stack.
func (e *Engine) rebuild(r *Record) (Word, bool) {
	root, ok := e.allocGlobal(1)
	if !ok {
		return 0, false
	}
	vars := make([]int, r.vars)
	for i := range vars {
		vars[i] = -1
	}
	dest := []int{root}
	for _, c := range r.cells {
		d := dest[len(dest)-1]
		dest = dest[:len(dest)-1]
		var w Word
		switch c.Kind {
		case CellVar:
			if vars[c.Int] >= 0 {
				w = makeRef(gloc(vars[c.Int]))
			} else {
				vars[c.Int] = d
				w = 0
			}
		case CellAttVar:
			g, ok := e.allocGlobal(2)
			if !ok {
				return 0, false
			}
			vars[c.Int] = g
			e.global.w[g] = attVarWord(g + 1)
			w = makeRef(gloc(g))
			dest = append(dest, g+1)
		case CellAtom:
			w = atomWord(c.Atom)
		case CellInt:
			w, ok = e.newInt64(c.Int)
		case CellBigInt:
			w, ok = e.newBigInt(c.Big)
		case CellFloat:
			w, ok = e.newFloat(c.Float)
		case CellString:
			w, ok = e.newString(c.Text)
		case CellCompound:
			arity := e.rt.FunctorArity(c.Functor)
			var g int
			g, ok = e.allocGlobal(1 + arity)
			if ok {
				e.global.w[g] = functorWord(c.Functor)
				w = compoundWord(g)
				for i := arity - 1; i >= 0; i-- {
					dest = append(dest, g+1+i)
				}
			}
		}
		if !ok {
			return 0, false
		}
		e.global.w[d] = w
	}
	if e.global.w[root].isVar() {
		return makeRef(gloc(root)), true
	}
	return e.global.w[root], true
}
