package engine

import (
	"cmp"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Dicts
// ---------------------------------------------------------------------------
//
// A dict is the compound dict(Tag, V1, K1, V2, K2, ...) with functor
// dict/(2n+1). Keys are atoms or small integers, stored in canonical order:
// integers ascending first, then atoms by name. Tag is an atom or unbound.

// DictKey is an atom or small integer dict key.
type DictKey struct {
	atom  Atom
	n     int64
	isInt bool
}

// KeyAtom returns the key for atom a.
func KeyAtom(a Atom) DictKey { return DictKey{atom: a} }

// KeyInt returns the key for integer n.
func KeyInt(n int64) DictKey { return DictKey{n: n, isInt: true} }

// Atom returns the key's atom.
func (k DictKey) Atom() (Atom, bool) { return k.atom, !k.isInt }

// Int returns the key's integer.
func (k DictKey) Int() (int64, bool) { return k.n, k.isInt }

func (k DictKey) word() Word {
	if k.isInt {
		return taggedInt(k.n)
	}
	return atomWord(k.atom)
}

func keyOfWord(w Word) (DictKey, bool) {
	switch {
	case w.isTaggedInt():
		return KeyInt(w.taggedInt()), true
	case w.isAtom():
		return KeyAtom(w.atom()), true
	}
	return DictKey{}, false
}

func (rt *Runtime) checkDictKey(k DictKey) error {
	if k.isInt {
		if k.n > MaxTaggedInt || k.n < MinTaggedInt {
			return fmt.Errorf("%w: integer %d out of range", ErrDictKey, k.n)
		}
		return nil
	}
	if !rt.atoms.Valid(k.atom) {
		return fmt.Errorf("%w: invalid atom %d", ErrDictKey, k.atom)
	}
	return nil
}

// CompareDictKeys orders keys canonically.
func (rt *Runtime) CompareDictKeys(a, b DictKey) int {
	switch {
	case a.isInt && b.isInt:
		return cmp.Compare(a.n, b.n)
	case a.isInt:
		return -1
	case b.isInt:
		return 1
	}
	if a.atom == b.atom {
		return 0
	}
	if c := strings.Compare(rt.atoms.Name(a.atom), rt.atoms.Name(b.atom)); c != 0 {
		return c
	}
	return cmp.Compare(a.atom, b.atom)
}

// KeyString renders a key for messages.
func (rt *Runtime) KeyString(k DictKey) string {
	if k.isInt {
		return fmt.Sprint(k.n)
	}
	return rt.atoms.Name(k.atom)
}

// PutDict makes t a dict with the given tag (AtomNone for unbound) and the
// values in the consecutive handles starting at values. Keys must already
// be in canonical order. Malformed keys return ErrDictKey and duplicate or
// misordered keys ErrDictOrder, leaving t untouched; running out of stack
// returns ErrException with a resource error pending.
func (e *Engine) PutDict(t Term, tag Atom, keys []DictKey, values Term) error {
	e.validUser("PutDict", t)
	for i, k := range keys {
		if err := e.rt.checkDictKey(k); err != nil {
			return err
		}
		if i > 0 && e.rt.CompareDictKeys(keys[i-1], k) >= 0 {
			return fmt.Errorf("%w: %s before %s", ErrDictOrder,
				e.rt.KeyString(keys[i-1]), e.rt.KeyString(k))
		}
		e.valid("PutDict", values+Term(i))
	}
	if tag != AtomNone {
		e.checkAtom("PutDict", tag)
	}

	n := len(keys)
	f := e.rt.NewFunctor(AtomDict, 2*n+1)
	if !e.ensureGlobal(2+2*n) || !e.ensureTrail(n) {
		return ErrException
	}
	i, _ := e.allocGlobal(2 + 2*n)
	e.global.w[i] = functorWord(f)
	if tag != AtomNone {
		e.global.w[i+1] = atomWord(tag)
	}
	for k, key := range keys {
		e.bindConsVal(i+2+2*k, valTermRef(values+Term(k)))
		e.global.w[i+3+2*k] = key.word()
	}
	e.setHandle(t, compoundWord(i))
	return nil
}

// IsDict reports whether t is a dict.
func (e *Engine) IsDict(t Term) bool {
	return e.isDict(e.wordOf("IsDict", t))
}

func (e *Engine) isDict(w Word) bool {
	if !w.isCompound() {
		return false
	}
	f := e.functorOf(w)
	return e.rt.FunctorName(f) == AtomDict && e.rt.FunctorArity(f)%2 == 1
}

// GetDictKeys returns the keys of dict t in stored order.
func (e *Engine) GetDictKeys(t Term) ([]DictKey, bool) {
	w := e.wordOf("GetDictKeys", t)
	if !e.isDict(w) {
		return nil, false
	}
	n := e.arityOf(w) / 2
	keys := make([]DictKey, 0, n)
	for k := 0; k < n; k++ {
		_, kw := e.deref(argLoc(w, 2+2*k))
		key, ok := keyOfWord(kw)
		if !ok {
			return nil, false
		}
		keys = append(keys, key)
	}
	return keys, true
}

// GetDictTag makes tag the tag of dict t.
func (e *Engine) GetDictTag(t, tag Term) bool {
	w := e.wordOf("GetDictTag", t)
	e.validUser("GetDictTag", tag)
	if !e.isDict(w) {
		return false
	}
	e.setHandle(tag, e.linkValNoG(argLoc(w, 0)))
	return true
}

// GetDictKey makes value the value stored under key in dict t.
func (e *Engine) GetDictKey(t Term, key DictKey, value Term) bool {
	w := e.wordOf("GetDictKey", t)
	e.validUser("GetDictKey", value)
	if !e.isDict(w) {
		return false
	}
	lo, hi := 0, e.arityOf(w)/2
	for lo < hi {
		mid := (lo + hi) / 2
		_, kw := e.deref(argLoc(w, 2+2*mid))
		k, ok := keyOfWord(kw)
		if !ok {
			return false
		}
		switch c := e.rt.CompareDictKeys(k, key); {
		case c == 0:
			e.setHandle(value, e.linkValNoG(argLoc(w, 1+2*mid)))
			return true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}
