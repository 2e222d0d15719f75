package engine

import (
	"cmp"
	"math"
	"math/big"
	"strings"
)

// ---------------------------------------------------------------------------
// Standard order of terms
// ---------------------------------------------------------------------------
//
// Var < Number < Atom < String < Compound. Variables are ordered by address,
// numbers by value (a float sorts before an integer of equal value), atoms
// alphabetically, compounds by arity, then name, then arguments.

type orderClass int

const (
	orderVar orderClass = iota
	orderNumber
	orderAtom
	orderString
	orderCompound
)

func orderOf(w Word) orderClass {
	switch {
	case w.canBind():
		return orderVar
	case w.isInteger(), w.isFloat():
		return orderNumber
	case w.isAtom():
		return orderAtom
	case w.isString():
		return orderString
	}
	return orderCompound
}

// Compare returns -1, 0 or 1 as t1 is before, equal to or after t2 in the
// standard order. Cyclic terms compare without looping.
func (e *Engine) Compare(t1, t2 Term) int {
	e.valid("Compare", t1)
	e.valid("Compare", t2)
	return e.compare(valTermRef(t1), valTermRef(t2))
}

// Equal reports whether t1 and t2 are structurally equal (==).
func (e *Engine) Equal(t1, t2 Term) bool { return e.Compare(t1, t2) == 0 }

func (e *Engine) compare(p1, p2 loc) int {
	visited := make(map[locPair]struct{})
	work := []locPair{{p1, p2}}
	for len(work) > 0 {
		pr := work[len(work)-1]
		work = work[:len(work)-1]
		q1, w1 := e.deref(pr.a)
		q2, w2 := e.deref(pr.b)
		if q1 == q2 {
			continue
		}
		c1, c2 := orderOf(w1), orderOf(w2)
		if c1 != c2 {
			return cmp.Compare(c1, c2)
		}
		var c int
		switch c1 {
		case orderVar:
			c = cmp.Compare(q1, q2)
		case orderNumber:
			c = e.compareNumbers(w1, w2)
		case orderAtom:
			c = e.rt.compareAtoms(w1.atom(), w2.atom())
		case orderString:
			c = strings.Compare(e.stringValue(w1), e.stringValue(w2))
		case orderCompound:
			if w1 == w2 {
				continue
			}
			key := locPair{w1.target(), w2.target()}
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}
			f1, f2 := e.functorOf(w1), e.functorOf(w2)
			if f1 != f2 {
				a1, a2 := e.rt.FunctorArity(f1), e.rt.FunctorArity(f2)
				if a1 != a2 {
					return cmp.Compare(a1, a2)
				}
				return e.rt.compareAtoms(e.rt.FunctorName(f1), e.rt.FunctorName(f2))
			}
			for i := e.rt.FunctorArity(f1) - 1; i >= 0; i-- {
				work = append(work, locPair{argLoc(w1, i), argLoc(w2, i)})
			}
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (e *Engine) compareNumbers(w1, w2 Word) int {
	switch {
	case w1.isInteger() && w2.isInteger():
		n1, b1, ok1 := e.integerValue(w1)
		n2, b2, ok2 := e.integerValue(w2)
		if ok1 && ok2 {
			return cmp.Compare(n1, n2)
		}
		if b1 == nil {
			b1 = big.NewInt(n1)
		}
		if b2 == nil {
			b2 = big.NewInt(n2)
		}
		return b1.Cmp(b2)
	case w1.isFloat() && w2.isFloat():
		return cmp.Compare(e.floatValue(w1), e.floatValue(w2))
	case w1.isFloat():
		if c := compareFloatInt(e.floatValue(w1), e.bigValue(w2)); c != 0 {
			return c
		}
		return -1
	default:
		if c := compareFloatInt(e.floatValue(w2), e.bigValue(w1)); c != 0 {
			return -c
		}
		return 1
	}
}

// compareFloatInt compares by exact value. NaN sorts before every integer.
func compareFloatInt(f float64, n *big.Int) int {
	switch {
	case math.IsNaN(f), math.IsInf(f, -1):
		return -1
	case math.IsInf(f, 1):
		return 1
	}
	return new(big.Float).SetFloat64(f).Cmp(new(big.Float).SetInt(n))
}

// compareAtoms orders text atoms by name. Blobs sort by type name, then by
// their type's Compare.
func (rt *Runtime) compareAtoms(a, b Atom) int {
	if a == b {
		return 0
	}
	da, ta, _ := rt.atoms.Data(a)
	db, tb, _ := rt.atoms.Data(b)
	if ta != tb {
		if ta == nil || tb == nil {
			return cmp.Compare(a, b)
		}
		if c := strings.Compare(ta.Name(), tb.Name()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}
	if ta == nil {
		return cmp.Compare(a, b)
	}
	if c := ta.Compare(da, db); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}
