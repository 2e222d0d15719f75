package engine

import "fmt"

// Word is the storage cell of every stack.
//
// Encoding scheme (least significant bits first):
//   - bits 0-2: tag (variable, attvar, float, integer, string, atom, compound, reference)
//   - bits 3-4: storage (inline, global, local, functor)
//   - bits 5-63: payload (signed small integer, atom/functor index, or arena index)
//
// The zero Word is an unbound variable. Boxed values (floats, strings, integers that
// do not fit the payload) live on the global stack behind an indirect header; the
// Word points at that header.
type Word uint64

// Tag values
const (
	tagVar Word = iota
	tagAttVar
	tagFloat
	tagInteger
	tagString
	tagAtom
	tagCompound
	tagReference
)

// Storage values (shifted into position)
const (
	stgInline  Word = 0 << 3
	stgGlobal  Word = 1 << 3
	stgLocal   Word = 2 << 3
	stgFunctor Word = 3 << 3
)

const (
	tagMask      Word = 0x7
	stgMask      Word = 0x3 << 3
	tagStgMask   Word = tagMask | stgMask
	payloadBits       = 59
	payloadShift      = 5
)

// Small integer range (59-bit signed)
const (
	MaxTaggedInt int64 = (1 << (payloadBits - 1)) - 1
	MinTaggedInt int64 = -(1 << (payloadBits - 1))
)

func (w Word) tag() Word { return w & tagMask }
func (w Word) stg() Word { return w & stgMask }

func (w Word) payload() uint64 { return uint64(w) >> payloadShift }

func mkWord(tag, stg Word, payload uint64) Word {
	return Word(payload<<payloadShift) | stg | tag
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

func (w Word) isVar() bool      { return w == 0 }
func (w Word) isAttVar() bool   { return w.tag() == tagAttVar }
func (w Word) canBind() bool    { return w == 0 || w.tag() == tagAttVar }
func (w Word) isRef() bool      { return w.tag() == tagReference }
func (w Word) isAtom() bool     { return w&tagStgMask == tagAtom|stgInline }
func (w Word) isFunctor() bool  { return w&tagStgMask == tagAtom|stgFunctor }
func (w Word) isCompound() bool { return w.tag() == tagCompound }
func (w Word) isFloat() bool    { return w.tag() == tagFloat }
func (w Word) isString() bool   { return w.tag() == tagString }
func (w Word) isInteger() bool  { return w.tag() == tagInteger }

func (w Word) isTaggedInt() bool { return w&tagStgMask == tagInteger|stgInline }

// isIndirect reports whether w points at a boxed value on the global stack.
func (w Word) isIndirect() bool {
	switch w.tag() {
	case tagFloat, tagString:
		return true
	case tagInteger:
		return w.stg() == stgGlobal
	}
	return false
}

func (w Word) isAtomic() bool {
	switch w.tag() {
	case tagFloat, tagInteger, tagString, tagAtom:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Immediates
// ---------------------------------------------------------------------------

func atomWord(a Atom) Word { return mkWord(tagAtom, stgInline, uint64(a)) }

func (w Word) atom() Atom {
	if !w.isAtom() {
		panic("Word.atom: not an atom")
	}
	return Atom(w.payload())
}

func functorWord(f Functor) Word { return mkWord(tagAtom, stgFunctor, uint64(f)) }

func (w Word) functor() Functor {
	if !w.isFunctor() {
		panic("Word.functor: not a functor")
	}
	return Functor(w.payload())
}

// taggedInt encodes n inline. The caller guarantees the range.
func taggedInt(n int64) Word {
	return Word(uint64(n)<<payloadShift) | tagInteger
}

func tryTaggedInt(n int64) (Word, bool) {
	if n > MaxTaggedInt || n < MinTaggedInt {
		return 0, false
	}
	return taggedInt(n), true
}

func (w Word) taggedInt() int64 {
	if !w.isTaggedInt() {
		panic("Word.taggedInt: not a small integer")
	}
	// arithmetic shift sign-extends the payload
	return int64(w) >> payloadShift
}

// ---------------------------------------------------------------------------
// Locations and pointers
// ---------------------------------------------------------------------------

// loc addresses a cell in either arena. Global locations sort below local
// locations, which gives the binding rules a single address order.
type loc uint64

const localBit loc = 1 << 62

func gloc(i int) loc { return loc(i) }
func lloc(i int) loc { return loc(i) | localBit }

func (p loc) local() bool { return p&localBit != 0 }
func (p loc) index() int  { return int(p &^ localBit) }

func (p loc) String() string {
	if p.local() {
		return fmt.Sprintf("L%d", p.index())
	}
	return fmt.Sprintf("G%d", p.index())
}

func makeRef(p loc) Word {
	if p.local() {
		return mkWord(tagReference, stgLocal, uint64(p.index()))
	}
	return mkWord(tagReference, stgGlobal, uint64(p.index()))
}

// target returns the location a reference, compound, boxed value or attvar
// points at.
func (w Word) target() loc {
	if w.stg() == stgLocal {
		return lloc(int(w.payload()))
	}
	return gloc(int(w.payload()))
}

func compoundWord(i int) Word { return mkWord(tagCompound, stgGlobal, uint64(i)) }
func indirectWord(tag Word, i int) Word {
	return mkWord(tag, stgGlobal, uint64(i))
}
func attVarWord(valueCell int) Word {
	return mkWord(tagAttVar, stgGlobal, uint64(valueCell))
}

// ---------------------------------------------------------------------------
// Indirect headers
// ---------------------------------------------------------------------------

// boxKind identifies the payload behind an indirect header.
type boxKind uint8

const (
	boxFloat boxKind = iota + 1
	boxInt64
	boxBigInt
	boxString
)

// An indirect header records the kind, the number of payload words following
// it and the number of unused trailing bytes in the last payload word.
func mkHeader(kind boxKind, words int, pad int) Word {
	return Word(uint64(words)<<16 | uint64(pad)<<8 | uint64(kind))
}

func (w Word) boxKind() boxKind { return boxKind(w & 0xff) }
func (w Word) boxWords() int    { return int(w >> 16) }
func (w Word) boxPad() int      { return int((w >> 8) & 0xff) }
