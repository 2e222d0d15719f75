package engine

// ---------------------------------------------------------------------------
// Term duplication
// ---------------------------------------------------------------------------

// allocFunc reserves n global cells and returns the first index.
type allocFunc func(n int) (int, bool)

type copyTask struct {
	src loc
	dst int
}

// copyTerm builds an independent copy of the term at p on top of the global
// stack. Shared subterms and variables stay shared, so cyclic terms copy
// without looping. Attributed variables are copied with their attributes.
// The copy is built through indices only; alloc may grow the stack.
func (e *Engine) copyTerm(p loc, alloc allocFunc) (Word, bool) {
	root, ok := alloc(1)
	if !ok {
		return 0, false
	}
	vars := make(map[loc]int)
	comps := make(map[int]int)
	stack := []copyTask{{src: p, dst: root}}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		q, w := e.deref(t.src)

		switch {
		case w.isVar():
			if g, seen := vars[q]; seen {
				e.global.w[t.dst] = makeRef(gloc(g))
			} else {
				vars[q] = t.dst
				e.global.w[t.dst] = 0
			}
		case w.isAttVar():
			if g, seen := vars[q]; seen {
				e.global.w[t.dst] = makeRef(gloc(g))
				continue
			}
			g, ok := alloc(2)
			if !ok {
				return 0, false
			}
			vars[q] = g
			e.global.w[g] = attVarWord(g + 1)
			e.global.w[t.dst] = makeRef(gloc(g))
			stack = append(stack, copyTask{src: w.target(), dst: g + 1})
		case w.isCompound():
			fi := w.target().index()
			if g, seen := comps[fi]; seen {
				e.global.w[t.dst] = compoundWord(g)
				continue
			}
			fw := e.global.w[fi]
			arity := e.rt.FunctorArity(fw.functor())
			g, ok := alloc(1 + arity)
			if !ok {
				return 0, false
			}
			comps[fi] = g
			e.global.w[g] = fw
			e.global.w[t.dst] = compoundWord(g)
			for i := arity - 1; i >= 0; i-- {
				stack = append(stack, copyTask{src: gloc(fi + 1 + i), dst: g + 1 + i})
			}
		case w.isIndirect():
			c, ok := e.copyBox(w, alloc)
			if !ok {
				return 0, false
			}
			e.global.w[t.dst] = c
		default:
			e.global.w[t.dst] = w
		}
	}

	w := e.global.w[root]
	if w.isVar() {
		return makeRef(gloc(root)), true
	}
	return w, true
}

// copyBox duplicates a boxed value using alloc.
func (e *Engine) copyBox(w Word, alloc allocFunc) (Word, bool) {
	h, _ := e.boxHeader(w)
	n := h.boxWords()
	j, ok := alloc(1 + n)
	if !ok {
		return 0, false
	}
	_, i := e.boxHeader(w)
	copy(e.global.w[j:j+1+n], e.global.w[i:i+1+n])
	return indirectWord(w.tag(), j), true
}

// DuplicateTerm returns a new handle holding a copy of from that shares no
// variables with it.
func (e *Engine) DuplicateTerm(from Term) Term {
	e.valid("DuplicateTerm", from)
	w, ok := e.copyTerm(valTermRef(from), e.allocGlobal)
	if !ok {
		return 0
	}
	t := e.NewTermRef()
	if t != 0 {
		e.setHandle(t, w)
	}
	return t
}
