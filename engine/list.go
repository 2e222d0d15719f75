package engine

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

// ListKind is the shape SkipList found.
type ListKind int

const (
	ListProper  ListKind = iota // ends in []
	ListPartial                 // ends in an unbound variable
	ListCyclic                  // a tail loops back to an earlier cell
	ListNotList                 // ends in anything else
)

func (k ListKind) String() string {
	switch k {
	case ListProper:
		return "proper"
	case ListPartial:
		return "partial"
	case ListCyclic:
		return "cyclic"
	}
	return "not_list"
}

func (e *Engine) isListCell(w Word) bool {
	return w.isCompound() && e.functorOf(w) == FunctorDot2
}

// SkipList walks the list t and returns its shape and the number of cells
// visited. If tail is not 0 it receives the term after the last cell.
// Cycles are detected with Brent's algorithm.
func (e *Engine) SkipList(t, tail Term) (ListKind, int) {
	e.valid("SkipList", t)
	if tail != 0 {
		e.validUser("SkipList", tail)
	}

	p, w := e.handle(t)
	length := 0
	kind := ListNotList
	power, lam := 1, 0
	slow := w
	for e.isListCell(w) {
		length++
		p, w = e.deref(argLoc(w, 1))
		if w == slow {
			kind = ListCyclic
			break
		}
		if lam++; lam == power {
			slow = w
			power *= 2
			lam = 0
		}
	}
	if kind != ListCyclic {
		switch {
		case w == atomWord(AtomNil):
			kind = ListProper
		case w.canBind():
			kind = ListPartial
		}
	}
	if tail != 0 {
		e.setHandle(tail, e.valueOf(p, w))
	}
	return kind, length
}

// GetList splits the list cell l into head h and tail t.
func (e *Engine) GetList(l, h, t Term) bool {
	w := e.wordOf("GetList", l)
	e.validUser("GetList", h)
	e.validUser("GetList", t)
	if !e.isListCell(w) {
		return false
	}
	e.setHandle(h, e.linkValNoG(argLoc(w, 0)))
	e.setHandle(t, e.linkValNoG(argLoc(w, 1)))
	return true
}

// GetHead makes h the head of the list cell l.
func (e *Engine) GetHead(l, h Term) bool {
	w := e.wordOf("GetHead", l)
	e.validUser("GetHead", h)
	if !e.isListCell(w) {
		return false
	}
	e.setHandle(h, e.linkValNoG(argLoc(w, 0)))
	return true
}

// GetTail makes t the tail of the list cell l.
func (e *Engine) GetTail(l, t Term) bool {
	w := e.wordOf("GetTail", l)
	e.validUser("GetTail", t)
	if !e.isListCell(w) {
		return false
	}
	e.setHandle(t, e.linkValNoG(argLoc(w, 1)))
	return true
}

// GetNil reports whether l is [].
func (e *Engine) GetNil(l Term) bool {
	return e.wordOf("GetNil", l) == atomWord(AtomNil)
}

// UnifyList unifies l with a list cell and makes h and t its head and tail.
// An unbound l is bound to a new cell with fresh arguments.
func (e *Engine) UnifyList(l, h, t Term) bool {
	e.valid("UnifyList", l)
	e.validUser("UnifyList", h)
	e.validUser("UnifyList", t)
	p, w := e.handle(l)
	if w.canBind() {
		c, ok := e.newCompound(FunctorDot2, 2)
		if !ok {
			return false
		}
		p, w = e.handle(l)
		if !e.bindVar(p, w, c) {
			return false
		}
		i := c.target().index()
		e.setHandle(h, makeRef(gloc(i+1)))
		e.setHandle(t, makeRef(gloc(i+2)))
		return true
	}
	if !e.isListCell(w) {
		return false
	}
	e.setHandle(h, e.linkValNoG(argLoc(w, 0)))
	e.setHandle(t, e.linkValNoG(argLoc(w, 1)))
	return true
}

// GetListEx is GetList raising a type error unless l is a list cell or [].
// It fails silently on [].
func (e *Engine) GetListEx(l, h, t Term) bool {
	if e.GetList(l, h, t) {
		return true
	}
	if e.GetNil(l) {
		return false
	}
	return e.TypeError(AtomList, l)
}

// GetNilEx is GetNil raising a type error unless l is a list cell or [].
func (e *Engine) GetNilEx(l Term) bool {
	if e.GetNil(l) {
		return true
	}
	if e.IsPair(l) {
		return false
	}
	return e.TypeError(AtomList, l)
}

// UnifyListEx is UnifyList raising a type error if l is neither a list
// cell, [] nor unbound.
func (e *Engine) UnifyListEx(l, h, t Term) bool {
	if e.UnifyList(l, h, t) {
		return true
	}
	if e.GetNil(l) || e.HasException() {
		return false
	}
	return e.TypeError(AtomList, l)
}

// UnifyNilEx is UnifyNil raising a type error if l is neither a list cell,
// [] nor unbound.
func (e *Engine) UnifyNilEx(l Term) bool {
	if e.UnifyNil(l) {
		return true
	}
	if e.IsPair(l) {
		return false
	}
	return e.TypeError(AtomList, l)
}

// ListLength returns the length of a proper list, or -1.
func (e *Engine) ListLength(l Term) int {
	kind, n := e.SkipList(l, 0)
	if kind != ListProper {
		return -1
	}
	return n
}
