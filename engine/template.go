package engine

import "math/big"

// ---------------------------------------------------------------------------
// Templates: unify against a term described in Go
// ---------------------------------------------------------------------------

type tmplKind uint8

const (
	tmplAny tmplKind = iota
	tmplTerm
	tmplAtom
	tmplAtomChars
	tmplInt
	tmplBig
	tmplFloat
	tmplString
	tmplBool
	tmplNil
	tmplCompound
	tmplFunctorChars
	tmplList
)

// Template describes a term for UnifyTerm. Build templates with the T
// constructors, e.g. TFunctor("point", TInt(1), TTerm(y)).
type Template struct {
	kind    tmplKind
	atom    Atom
	text    string
	n       int64
	big     *big.Int
	f       float64
	b       bool
	t       Term
	functor Functor
	args    []Template
	tail    *Template
}

// TAny matches anything.
func TAny() Template { return Template{kind: tmplAny} }

// TTerm is the value of handle t.
func TTerm(t Term) Template { return Template{kind: tmplTerm, t: t} }

func TAtom(a Atom) Template            { return Template{kind: tmplAtom, atom: a} }
func TAtomChars(s string) Template     { return Template{kind: tmplAtomChars, text: s} }
func TInt(n int64) Template            { return Template{kind: tmplInt, n: n} }
func TBigInt(n *big.Int) Template      { return Template{kind: tmplBig, big: n} }
func TFloat(f float64) Template        { return Template{kind: tmplFloat, f: f} }
func TString(s string) Template        { return Template{kind: tmplString, text: s} }
func TBool(b bool) Template            { return Template{kind: tmplBool, b: b} }
func TNil() Template                   { return Template{kind: tmplNil} }
func TList(elems ...Template) Template { return Template{kind: tmplList, args: elems} }

// TCompound is f(args...). The number of args must match the arity of f.
func TCompound(f Functor, args ...Template) Template {
	return Template{kind: tmplCompound, functor: f, args: args}
}

// TFunctor is name(args...).
func TFunctor(name string, args ...Template) Template {
	return Template{kind: tmplFunctorChars, text: name, args: args}
}

// TPartialList is [elems...|tail].
func TPartialList(tail Template, elems ...Template) Template {
	return Template{kind: tmplList, args: elems, tail: &tail}
}

// UnifyTerm unifies t with the term described by tmpl. Scratch handles are
// released before it returns; on failure no bindings remain.
func (e *Engine) UnifyTerm(t Term, tmpl Template) bool {
	e.valid("UnifyTerm", t)
	fid := e.OpenForeignFrame()
	if fid == 0 {
		return false
	}
	h := e.NewTermRef()
	ok := h != 0 && e.buildTemplate(h, tmpl) && e.Unify(t, h)
	if ok {
		e.CloseForeignFrame(fid)
	} else {
		e.DiscardForeignFrame(fid)
	}
	return ok
}

func (e *Engine) buildTemplate(h Term, tm Template) bool {
	switch tm.kind {
	case tmplAny:
		return e.PutVariable(h)
	case tmplTerm:
		return e.PutTerm(h, tm.t)
	case tmplAtom:
		return e.PutAtom(h, tm.atom)
	case tmplAtomChars:
		return e.PutAtomChars(h, tm.text)
	case tmplInt:
		return e.PutInt64(h, tm.n)
	case tmplBig:
		return e.PutBigInt(h, tm.big)
	case tmplFloat:
		return e.PutFloat(h, tm.f)
	case tmplString:
		return e.PutString(h, tm.text)
	case tmplBool:
		return e.PutBool(h, tm.b)
	case tmplNil:
		return e.PutNil(h)
	case tmplCompound, tmplFunctorChars:
		f := tm.functor
		if tm.kind == tmplFunctorChars {
			f = e.rt.NewFunctorChars(tm.text, len(tm.args))
		}
		args, ok := e.buildArgs(tm.args)
		if !ok {
			return false
		}
		return e.ConsFunctor(h, f, args...)
	case tmplList:
		if tm.tail == nil {
			elems, ok := e.buildArgs(tm.args)
			return ok && e.ConsListV(h, elems)
		}
		if !e.buildTemplate(h, *tm.tail) {
			return false
		}
		cell := e.NewTermRef()
		if cell == 0 {
			return false
		}
		for i := len(tm.args) - 1; i >= 0; i-- {
			if !e.buildTemplate(cell, tm.args[i]) || !e.ConsList(h, cell, h) {
				return false
			}
		}
		return true
	}
	apiError("UnifyTerm", "invalid template kind %d", tm.kind)
	return false
}

func (e *Engine) buildArgs(tms []Template) ([]Term, bool) {
	if len(tms) == 0 {
		return nil, true
	}
	a0 := e.NewTermRefs(len(tms))
	if a0 == 0 {
		return nil, false
	}
	args := make([]Term, len(tms))
	for i, tm := range tms {
		args[i] = a0 + Term(i)
		if !e.buildTemplate(args[i], tm) {
			return nil, false
		}
	}
	return args, true
}
