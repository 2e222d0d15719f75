package engine

import (
	"encoding/binary"
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// Boxed values on the global stack
// ---------------------------------------------------------------------------

// allocBox writes a header plus payload and returns the indirect word.
func (e *Engine) allocBox(tag Word, kind boxKind, payload []Word, pad int) (Word, bool) {
	i, ok := e.allocGlobal(1 + len(payload))
	if !ok {
		return 0, false
	}
	e.global.w[i] = mkHeader(kind, len(payload), pad)
	copy(e.global.w[i+1:], payload)
	return indirectWord(tag, i), true
}

func (e *Engine) boxHeader(w Word) (Word, int) {
	i := w.target().index()
	return e.global.w[i], i
}

func (e *Engine) newFloat(f float64) (Word, bool) {
	return e.allocBox(tagFloat, boxFloat, []Word{Word(math.Float64bits(f))}, 0)
}

func (e *Engine) floatValue(w Word) float64 {
	_, i := e.boxHeader(w)
	return math.Float64frombits(uint64(e.global.w[i+1]))
}

// newInt64 returns an inline word if n fits, else a boxed int64.
func (e *Engine) newInt64(n int64) (Word, bool) {
	if w, ok := tryTaggedInt(n); ok {
		return w, true
	}
	return e.allocBox(tagInteger, boxInt64, []Word{Word(uint64(n))}, 0)
}

// newBigInt stores n in the smallest representation that holds it.
func (e *Engine) newBigInt(n *big.Int) (Word, bool) {
	if n.IsInt64() {
		return e.newInt64(n.Int64())
	}
	if e.rt.opts.BoundedIntegers {
		if n.Sign() > 0 {
			return 0, e.RepresentationError(AtomMaxInteger)
		}
		return 0, e.RepresentationError(AtomMinInteger)
	}
	mag := n.Bytes()
	buf := make([]byte, 1+len(mag))
	if n.Sign() < 0 {
		buf[0] = 1
	}
	copy(buf[1:], mag)
	payload, pad := packBytes(buf)
	return e.allocBox(tagInteger, boxBigInt, payload, pad)
}

// integerValue decodes any integer word. The bool is false for values that
// do not fit in int64; the big.Int is always set for those.
func (e *Engine) integerValue(w Word) (int64, *big.Int, bool) {
	if w.isTaggedInt() {
		return w.taggedInt(), nil, true
	}
	h, i := e.boxHeader(w)
	if h.boxKind() == boxInt64 {
		return int64(e.global.w[i+1]), nil, true
	}
	buf := unpackBytes(e.global.w[i+1:i+1+h.boxWords()], h.boxPad())
	n := new(big.Int).SetBytes(buf[1:])
	if buf[0] == 1 {
		n.Neg(n)
	}
	return 0, n, false
}

func (e *Engine) bigValue(w Word) *big.Int {
	n, b, ok := e.integerValue(w)
	if ok {
		return big.NewInt(n)
	}
	return b
}

func (e *Engine) newString(s string) (Word, bool) {
	payload, pad := packBytes([]byte(s))
	return e.allocBox(tagString, boxString, payload, pad)
}

func (e *Engine) stringValue(w Word) string {
	h, i := e.boxHeader(w)
	return string(unpackBytes(e.global.w[i+1:i+1+h.boxWords()], h.boxPad()))
}

// equalIndirect compares two boxed values of the same tag by content.
func (e *Engine) equalIndirect(a, b Word) bool {
	ha, ia := e.boxHeader(a)
	hb, ib := e.boxHeader(b)
	if ha != hb {
		return false
	}
	n := ha.boxWords()
	for k := 1; k <= n; k++ {
		if e.global.w[ia+k] != e.global.w[ib+k] {
			return false
		}
	}
	return true
}

func packBytes(b []byte) ([]Word, int) {
	n := (len(b) + 7) / 8
	out := make([]Word, n)
	var tmp [8]byte
	for k := 0; k < n; k++ {
		clear(tmp[:])
		copy(tmp[:], b[k*8:])
		out[k] = Word(binary.LittleEndian.Uint64(tmp[:]))
	}
	return out, n*8 - len(b)
}

func unpackBytes(ws []Word, pad int) []byte {
	out := make([]byte, len(ws)*8)
	for k, w := range ws {
		binary.LittleEndian.PutUint64(out[k*8:], uint64(w))
	}
	return out[:len(out)-pad]
}
