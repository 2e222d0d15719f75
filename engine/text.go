package engine

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ---------------------------------------------------------------------------
// Text descriptors
// ---------------------------------------------------------------------------

// Encoding tags the representation of a Text.
type Encoding int

const (
	EncUTF8 Encoding = iota
	EncLatin1
	EncWide
	// EncANSI is locale multibyte text. Go programs run with UTF-8 locales,
	// so it is handled as UTF-8.
	EncANSI
)

func (enc Encoding) String() string {
	switch enc {
	case EncUTF8:
		return "utf8"
	case EncLatin1:
		return "iso_latin_1"
	case EncWide:
		return "wchar"
	case EncANSI:
		return "text"
	}
	return "unknown"
}

// Text is text in a given encoding. Latin-1, UTF-8 and ANSI text uses
// Bytes; wide text uses Runes.
type Text struct {
	Encoding Encoding
	Bytes    []byte
	Runes    []rune
}

// TextOf returns s as UTF-8 text.
func TextOf(s string) Text { return Text{Encoding: EncUTF8, Bytes: []byte(s)} }

// Decode returns t as a Go string. Invalid UTF-8 is an error.
func (t Text) Decode() (string, error) {
	switch t.Encoding {
	case EncUTF8, EncANSI:
		if !utf8.Valid(t.Bytes) {
			return "", fmt.Errorf("text: invalid UTF-8")
		}
		return string(t.Bytes), nil
	case EncLatin1:
		b, err := charmap.ISO8859_1.NewDecoder().Bytes(t.Bytes)
		if err != nil {
			return "", fmt.Errorf("text: %w", err)
		}
		return string(b), nil
	case EncWide:
		return string(t.Runes), nil
	}
	return "", fmt.Errorf("text: unknown encoding %d", t.Encoding)
}

// To converts t to enc. Conversion is lossless or fails; text with
// characters above U+00FF cannot become Latin-1.
func (t Text) To(enc Encoding) (Text, error) {
	if t.Encoding == enc {
		return t, nil
	}
	s, err := t.Decode()
	if err != nil {
		return Text{}, err
	}
	switch enc {
	case EncUTF8, EncANSI:
		return Text{Encoding: enc, Bytes: []byte(s)}, nil
	case EncLatin1:
		b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return Text{}, fmt.Errorf("text: not representable in ISO Latin-1: %w", err)
		}
		return Text{Encoding: EncLatin1, Bytes: b}, nil
	case EncWide:
		return Text{Encoding: EncWide, Runes: []rune(s)}, nil
	}
	return Text{}, fmt.Errorf("text: unknown encoding %d", enc)
}

// Len returns the number of characters.
func (t Text) Len() int {
	switch t.Encoding {
	case EncLatin1:
		return len(t.Bytes)
	case EncWide:
		return len(t.Runes)
	}
	return utf8.RuneCount(t.Bytes)
}

// ---------------------------------------------------------------------------
// Conversion flags
// ---------------------------------------------------------------------------

// CvtFlags select which term types GetChars converts and how.
type CvtFlags uint32

const (
	CvtAtom CvtFlags = 1 << iota
	CvtString
	CvtCodeList
	CvtCharList
	CvtInteger
	CvtFloat
	CvtVariable
	CvtWrite
	CvtException

	// RepISOLatin1 requires text representable in Latin-1; RepMB asks for
	// locale multibyte output. The default is UTF-8.
	RepISOLatin1
	RepMB

	CvtList   = CvtCodeList | CvtCharList
	CvtNumber = CvtInteger | CvtFloat
	CvtAtomic = CvtNumber | CvtAtom | CvtString
	CvtAll    = CvtAtomic | CvtList
)

// CharsKind is the term type PutChars and UnifyChars create.
type CharsKind int

const (
	CharsAtom CharsKind = iota
	CharsString
	CharsCodes
	CharsChars
)

// ---------------------------------------------------------------------------
// Term to text
// ---------------------------------------------------------------------------

// GetChars converts t to a string according to flags. With CvtException a
// failed conversion raises a type or representation error.
func (e *Engine) GetChars(t Term, flags CvtFlags) (string, bool) {
	e.valid("GetChars", t)
	s, ok := e.textOf(t, flags)
	if !ok {
		if flags&CvtException != 0 {
			return "", e.TypeError(expectedTextType(flags), t)
		}
		return "", false
	}
	if flags&RepISOLatin1 != 0 {
		if _, err := TextOf(s).To(EncLatin1); err != nil {
			if flags&CvtException != 0 {
				return "", e.RepresentationError(AtomEncoding)
			}
			return "", false
		}
	}
	return s, true
}

// GetCharsEx is GetChars with CvtException.
func (e *Engine) GetCharsEx(t Term, flags CvtFlags) (string, bool) {
	return e.GetChars(t, flags|CvtException)
}

// GetText is GetChars returning a Text in the encoding selected by the Rep
// flags.
func (e *Engine) GetText(t Term, flags CvtFlags) (Text, bool) {
	s, ok := e.GetChars(t, flags)
	if !ok {
		return Text{}, false
	}
	enc := EncUTF8
	switch {
	case flags&RepISOLatin1 != 0:
		enc = EncLatin1
	case flags&RepMB != 0:
		enc = EncANSI
	}
	txt, err := TextOf(s).To(enc)
	if err != nil {
		return Text{}, false
	}
	return txt, true
}

func expectedTextType(flags CvtFlags) Atom {
	switch flags & CvtAll {
	case CvtAtom:
		return AtomAtom
	case CvtString:
		return AtomString
	case CvtInteger:
		return AtomInteger
	case CvtCodeList, CvtCharList, CvtList:
		return AtomList
	case CvtAtom | CvtString:
		return AtomText
	}
	if flags&CvtList != 0 {
		return AtomText
	}
	return AtomAtomic
}

func (e *Engine) textOf(t Term, flags CvtFlags) (string, bool) {
	p, w := e.handle(t)
	switch {
	case w == atomWord(AtomNil) && flags&CvtList != 0 && flags&CvtAtom == 0:
		return "", true
	case w.isAtom():
		if flags&CvtAtom != 0 {
			return e.rt.AtomText(w.atom())
		}
	case w.isString():
		if flags&CvtString != 0 {
			return e.stringValue(w), true
		}
	case w.isInteger():
		if flags&CvtInteger != 0 {
			return e.bigValue(w).String(), true
		}
	case w.isFloat():
		if flags&CvtFloat != 0 {
			return formatFloat(e.floatValue(w)), true
		}
	case w.canBind():
		if flags&CvtVariable != 0 {
			return varName(p), true
		}
	case w.isCompound():
		if flags&CvtList != 0 {
			if s, ok := e.listText(p, flags); ok {
				return s, true
			}
		}
	}
	if flags&CvtWrite != 0 {
		var buf bytes.Buffer
		if err := e.WriteTerm(&buf, t, WriteQuoted); err == nil {
			return buf.String(), true
		}
	}
	return "", false
}

// listText decodes a proper code or char list.
func (e *Engine) listText(p loc, flags CvtFlags) (string, bool) {
	var sb []rune
	seen := 0
	for {
		_, w := e.deref(p)
		if w == atomWord(AtomNil) {
			return string(sb), true
		}
		if !w.isCompound() || e.functorOf(w) != FunctorDot2 {
			return "", false
		}
		if seen++; seen > e.global.top {
			return "", false
		}
		_, h := e.deref(argLoc(w, 0))
		switch {
		case h.isTaggedInt() && flags&CvtCodeList != 0:
			// Surrogates have no UTF-8 form.
			c := h.taggedInt()
			if c < 0 || c > utf8.MaxRune || !utf8.ValidRune(rune(c)) {
				return "", false
			}
			sb = append(sb, rune(c))
		case h.isAtom() && flags&CvtCharList != 0:
			name, ok := e.rt.AtomText(h.atom())
			if !ok || utf8.RuneCountInString(name) != 1 {
				return "", false
			}
			r, size := utf8.DecodeRuneInString(name)
			if r == utf8.RuneError && size == 1 {
				return "", false
			}
			sb = append(sb, r)
		default:
			return "", false
		}
		p = argLoc(w, 1)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.0Inf"
	case math.IsInf(f, -1):
		return "-1.0Inf"
	case math.IsNaN(f):
		return "1.5NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	mant, exp, hasExp := strings.Cut(s, "e")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	if hasExp {
		return mant + "e" + strings.TrimPrefix(exp, "+")
	}
	return mant
}

func varName(p loc) string {
	if p.local() {
		return "_L" + strconv.Itoa(p.index())
	}
	return "_G" + strconv.Itoa(p.index())
}

// ---------------------------------------------------------------------------
// Text to term
// ---------------------------------------------------------------------------

// PutChars makes t the atom, string, code list or char list of s.
func (e *Engine) PutChars(t Term, kind CharsKind, s string) bool {
	e.validUser("PutChars", t)
	w, ok := e.textWord(kind, s)
	if !ok {
		return false
	}
	e.setHandle(t, w)
	return true
}

// PutText is PutChars for a Text in any encoding.
func (e *Engine) PutText(t Term, kind CharsKind, txt Text) bool {
	s, err := txt.Decode()
	if err != nil {
		return e.RepresentationError(AtomEncoding)
	}
	return e.PutChars(t, kind, s)
}

// UnifyChars unifies t with the atom, string, code list or char list of s.
func (e *Engine) UnifyChars(t Term, kind CharsKind, s string) bool {
	e.valid("UnifyChars", t)
	switch kind {
	case CharsAtom:
		return e.UnifyAtomChars(t, s)
	case CharsString:
		return e.UnifyString(t, s)
	}
	w, ok := e.textWord(kind, s)
	if !ok {
		return false
	}
	return e.unifyBuilt(t, w)
}

// PutListCodes makes t the list of character codes of s.
func (e *Engine) PutListCodes(t Term, s string) bool { return e.PutChars(t, CharsCodes, s) }

// PutListChars makes t the list of one-character atoms of s.
func (e *Engine) PutListChars(t Term, s string) bool { return e.PutChars(t, CharsChars, s) }

// UnifyListCodes unifies t with the code list of s.
func (e *Engine) UnifyListCodes(t Term, s string) bool { return e.UnifyChars(t, CharsCodes, s) }

// UnifyListChars unifies t with the char list of s.
func (e *Engine) UnifyListChars(t Term, s string) bool { return e.UnifyChars(t, CharsChars, s) }

func (e *Engine) textWord(kind CharsKind, s string) (Word, bool) {
	switch kind {
	case CharsAtom:
		a := e.rt.NewAtom(s)
		e.rt.UnregisterAtom(a)
		return atomWord(a), true
	case CharsString:
		return e.newString(s)
	case CharsCodes, CharsChars:
		return e.newCharList(s, kind == CharsCodes)
	}
	apiError("PutChars", "unknown text kind %d", kind)
	return 0, false
}

// newCharList builds a code or char list of s on the global stack.
func (e *Engine) newCharList(s string, codes bool) (Word, bool) {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return atomWord(AtomNil), true
	}
	start, ok := e.allocGlobal(3 * n)
	if !ok {
		return 0, false
	}
	k := 0
	for _, r := range s {
		p := start + 3*k
		e.global.w[p] = functorWord(FunctorDot2)
		if codes {
			e.global.w[p+1] = taggedInt(int64(r))
		} else {
			a := e.rt.NewAtom(string(r))
			e.rt.UnregisterAtom(a)
			e.global.w[p+1] = atomWord(a)
		}
		if k < n-1 {
			e.global.w[p+2] = compoundWord(p + 3)
		} else {
			e.global.w[p+2] = atomWord(AtomNil)
		}
		k++
	}
	return compoundWord(start), true
}

// unifyBuilt unifies t with a word freshly built on the global stack.
func (e *Engine) unifyBuilt(t Term, w Word) bool {
	p, v := e.handle(t)
	if v.canBind() {
		return e.bindVar(p, v, w)
	}
	g, ok := e.allocGlobal(1)
	if !ok {
		return false
	}
	e.global.w[g] = w
	m := e.Mark()
	ok = e.unify(valTermRef(t), gloc(g))
	if !ok {
		e.Undo(m)
	}
	e.CommitMark(m)
	return ok
}
