package engine

import (
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Writing terms as text
// ---------------------------------------------------------------------------
//
// The writer produces canonical syntax: every compound is written as
// name(Args) except lists, {}/1 and dicts. It is used for logging
// exceptions and for text conversion with CvtWrite.

// WriteFlags control WriteTerm.
type WriteFlags uint

const (
	// WriteQuoted quotes atoms and strings so the output reads back.
	WriteQuoted WriteFlags = 1 << iota
	// WriteNoLists writes lists as '[|]'(H, T).
	WriteNoLists
)

// maxWriteDepth bounds argument nesting; deeper subterms are elided.
const maxWriteDepth = 10000

type termWriter struct {
	e      *Engine
	flags  WriteFlags
	sb     strings.Builder
	onPath map[int]bool
}

// WriteTerm writes t to w.
func (e *Engine) WriteTerm(w io.Writer, t Term, flags WriteFlags) error {
	e.valid("WriteTerm", t)
	return e.writeWord(w, valTermRef(t), flags)
}

// TermString returns the quoted text of t.
func (e *Engine) TermString(t Term) string {
	var sb strings.Builder
	if err := e.WriteTerm(&sb, t, WriteQuoted); err != nil {
		return "<" + err.Error() + ">"
	}
	return sb.String()
}

func (e *Engine) writeWord(w io.Writer, p loc, flags WriteFlags) error {
	tw := &termWriter{e: e, flags: flags, onPath: make(map[int]bool)}
	if err := tw.term(p, 0); err != nil {
		return err
	}
	_, err := io.WriteString(w, tw.sb.String())
	return err
}

func (tw *termWriter) quoted() bool { return tw.flags&WriteQuoted != 0 }

func (tw *termWriter) term(p loc, depth int) error {
	e := tw.e
	q, w := e.deref(p)
	if depth > maxWriteDepth {
		tw.sb.WriteString("...")
		return nil
	}
	switch {
	case w.canBind():
		tw.sb.WriteString(varName(q))
	case w.isAtom():
		return tw.atom(w.atom())
	case w.isInteger():
		tw.sb.WriteString(e.bigValue(w).String())
	case w.isFloat():
		tw.sb.WriteString(formatFloat(e.floatValue(w)))
	case w.isString():
		tw.str(e.stringValue(w))
	case w.isCompound():
		return tw.compound(w, depth)
	default:
		tw.sb.WriteString("<?>")
	}
	return nil
}

func (tw *termWriter) atom(a Atom) error {
	data, typ, ok := tw.e.rt.atoms.Data(a)
	if !ok {
		tw.sb.WriteString("<invalid atom " + strconv.Itoa(int(a)) + ">")
		return nil
	}
	if typ != textBlobType {
		return typ.Write(&tw.sb, a, data)
	}
	name := string(data)
	if tw.quoted() && atomNeedsQuotes(name) {
		tw.sb.WriteString(quoteText(name, '\''))
	} else {
		tw.sb.WriteString(name)
	}
	return nil
}

func (tw *termWriter) str(s string) {
	if tw.quoted() {
		tw.sb.WriteString(quoteText(s, '"'))
	} else {
		tw.sb.WriteString(s)
	}
}

func (tw *termWriter) compound(w Word, depth int) error {
	e := tw.e
	fi := w.target().index()
	if tw.onPath[fi] {
		tw.sb.WriteString("@cycle")
		return nil
	}
	tw.onPath[fi] = true
	defer delete(tw.onPath, fi)

	f := e.functorOf(w)
	name := e.rt.FunctorName(f)
	arity := e.rt.FunctorArity(f)

	switch {
	case f == FunctorDot2 && tw.flags&WriteNoLists == 0:
		return tw.list(w, depth)
	case name == AtomCurly && arity == 1:
		tw.sb.WriteByte('{')
		if err := tw.term(argLoc(w, 0), depth+1); err != nil {
			return err
		}
		tw.sb.WriteByte('}')
		return nil
	case e.isDict(w):
		return tw.dict(w, depth)
	}

	if err := tw.atom(name); err != nil {
		return err
	}
	tw.sb.WriteByte('(')
	for i := 0; i < arity; i++ {
		if i > 0 {
			tw.sb.WriteByte(',')
		}
		if err := tw.term(argLoc(w, i), depth+1); err != nil {
			return err
		}
	}
	tw.sb.WriteByte(')')
	return nil
}

// list writes the list cells iteratively; only the elements recurse.
func (tw *termWriter) list(w Word, depth int) error {
	e := tw.e
	tw.sb.WriteByte('[')
	var cells []int
	defer func() {
		for _, c := range cells {
			delete(tw.onPath, c)
		}
	}()
	for first := true; ; first = false {
		if !first {
			tw.sb.WriteByte(',')
		}
		if err := tw.term(argLoc(w, 0), depth+1); err != nil {
			return err
		}
		q, tail := e.deref(argLoc(w, 1))
		switch {
		case tail == atomWord(AtomNil):
			tw.sb.WriteByte(']')
			return nil
		case tail.isCompound() && e.functorOf(tail) == FunctorDot2:
			ti := tail.target().index()
			if tw.onPath[ti] {
				tw.sb.WriteString("|@cycle]")
				return nil
			}
			tw.onPath[ti] = true
			cells = append(cells, ti)
			w = tail
		default:
			tw.sb.WriteByte('|')
			if err := tw.term(q, depth+1); err != nil {
				return err
			}
			tw.sb.WriteByte(']')
			return nil
		}
	}
}

func (tw *termWriter) dict(w Word, depth int) error {
	e := tw.e
	if err := tw.term(argLoc(w, 0), depth+1); err != nil {
		return err
	}
	tw.sb.WriteByte('{')
	n := e.arityOf(w) / 2
	for k := 0; k < n; k++ {
		if k > 0 {
			tw.sb.WriteByte(',')
		}
		if err := tw.term(argLoc(w, 2+2*k), depth+1); err != nil {
			return err
		}
		tw.sb.WriteByte(':')
		if err := tw.term(argLoc(w, 1+2*k), depth+1); err != nil {
			return err
		}
	}
	tw.sb.WriteByte('}')
	return nil
}

// ---------------------------------------------------------------------------
// Quoting
// ---------------------------------------------------------------------------

const symbolChars = "#$&*+-./:<=>?@^~\\"

// atomNeedsQuotes reports whether name must be quoted to read back as the
// same atom.
func atomNeedsQuotes(name string) bool {
	switch name {
	case "":
		return true
	case "[]", "{}", "!", ";", ",", "|":
		return name == "," || name == "|"
	}
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsLower(r) {
		for _, c := range name {
			if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
				return true
			}
		}
		return false
	}
	if strings.ContainsRune(symbolChars, r) {
		if strings.HasPrefix(name, "/*") {
			return true
		}
		for _, c := range name {
			if !strings.ContainsRune(symbolChars, c) {
				return true
			}
		}
		return false
	}
	return true
}

func quoteText(s string, q byte) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte(q)
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0\`)
		default:
			if r == rune(q) {
				sb.WriteByte('\\')
				sb.WriteByte(q)
			} else if r < 0x20 || r == 0x7f {
				sb.WriteString(`\x` + strconv.FormatInt(int64(r), 16) + `\`)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
