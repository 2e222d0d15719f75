package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/plfli/engine"
)

func attach(t *testing.T) (*engine.Runtime, *engine.Engine) {
	t.Helper()
	rt := engine.New(engine.DefaultOptions())
	e, err := rt.Attach()
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(rt.Shutdown)
	return rt, e
}

func recordOf(t *testing.T, e *engine.Engine, tmpl engine.Template) *engine.Record {
	t.Helper()
	h := e.NewTermRef()
	if !e.UnifyTerm(h, tmpl) {
		t.Fatal("UnifyTerm failed")
	}
	r, err := e.Record(h)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	return r
}

func instance(t *testing.T, e *engine.Engine, r *engine.Record) engine.Term {
	t.Helper()
	h := e.NewTermRef()
	if !e.Recorded(r, h) {
		t.Fatal("Recorded failed")
	}
	return h
}

// hexBlob saves its payload as hex so Save/Load are observable.
type hexBlob struct {
	engine.BlobTypeBase
}

func (h *hexBlob) Save(data []byte) ([]byte, error) {
	return []byte(hex.EncodeToString(data)), nil
}

func (h *hexBlob) Load(saved []byte) ([]byte, error) {
	return hex.DecodeString(string(saved))
}

func newHexBlob() *hexBlob {
	return &hexBlob{engine.BlobTypeBase{TypeName: "hex", TypeFlags: engine.BlobUnique}}
}

// ---------------------------------------------------------------------------
// Round trips between runtimes
// ---------------------------------------------------------------------------

func TestRoundTripAcrossRuntimes(t *testing.T) {
	_, src := attach(t)
	dstRT, dst := attach(t)

	huge, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	tests := []struct {
		name string
		tmpl engine.Template
		want string
	}{
		{"atom", engine.TAtomChars("hello"), "hello"},
		{"quoted atom", engine.TAtomChars("Hello World"), "'Hello World'"},
		{"int", engine.TInt(-42), "-42"},
		{"big", engine.TBigInt(huge), "-123456789012345678901234567890"},
		{"float", engine.TFloat(2.5), "2.5"},
		{"string", engine.TString("naïve"), `"naïve"`},
		{"list", engine.TList(engine.TInt(1), engine.TAtomChars("b")), "[1,b]"},
		{"nested", engine.TFunctor("f", engine.TFunctor("g", engine.TNil()), engine.TString("")), `f(g([]),"")`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Marshal(src.Runtime(), recordOf(t, src, tc.tmpl))
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			r, err := Unmarshal(dstRT, data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			defer dstRT.Erase(r)
			if got := dst.TermString(instance(t, dst, r)); got != tc.want {
				t.Errorf("decoded %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRoundTripKeepsVariableSharing(t *testing.T) {
	_, src := attach(t)
	dstRT, dst := attach(t)

	x := src.NewTermRef()
	r := recordOf(t, src, engine.TFunctor("p", engine.TTerm(x), engine.TAny(), engine.TTerm(x)))
	data, err := Marshal(src.Runtime(), r)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(dstRT, data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Vars() != 2 {
		t.Errorf("Vars = %d, want 2", back.Vars())
	}

	h := instance(t, dst, back)
	a, b, c := dst.NewTermRef(), dst.NewTermRef(), dst.NewTermRef()
	dst.GetArg(1, h, a)
	dst.GetArg(2, h, b)
	dst.GetArg(3, h, c)
	if dst.Compare(a, c) != 0 {
		t.Error("first and third argument should be the same variable")
	}
	if dst.Compare(a, b) == 0 {
		t.Error("first and second argument should be distinct variables")
	}
}

func TestRoundTripNegativeZero(t *testing.T) {
	rt, e := attach(t)

	data, err := Marshal(rt, recordOf(t, e, engine.TFloat(math.Copysign(0, -1))))
	if err != nil {
		t.Fatal(err)
	}
	r, err := Unmarshal(rt, data)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := e.GetFloat(instance(t, e, r))
	if !ok || f != 0 || !math.Signbit(f) {
		t.Errorf("decoded %v (ok %v), want -0.0", f, ok)
	}
}

// ---------------------------------------------------------------------------
// Blobs
// ---------------------------------------------------------------------------

func TestBlobUsesSaveAndLoad(t *testing.T) {
	srcRT, src := attach(t)
	dstRT, dst := attach(t)

	srcType := newHexBlob()
	blob, _ := srcRT.NewBlob([]byte{0xca, 0xfe}, srcType)
	data, err := Marshal(srcRT, recordOf(t, src, engine.TFunctor("wrap", engine.TAtom(blob))))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Contains(data, []byte("cafe")) {
		t.Error("encoding should carry the payload produced by Save")
	}

	if _, err := Unmarshal(dstRT, data); !errors.Is(err, ErrUnknownBlobType) {
		t.Fatalf("Unmarshal without the type registered = %v, want ErrUnknownBlobType", err)
	}

	dstType := newHexBlob()
	dstRT.RegisterBlobType(dstType)
	r, err := Unmarshal(dstRT, data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	h := instance(t, dst, r)
	arg := dst.NewTermRef()
	dst.GetArg(1, h, arg)
	a, ok := dst.GetAtom(arg)
	if !ok {
		t.Fatalf("argument %s is not an atom", dst.TermString(arg))
	}
	payload, typ, _ := dstRT.BlobData(a)
	if typ != engine.BlobType(dstType) {
		t.Errorf("decoded blob has type %s, want the registered hex type", typ.Name())
	}
	if !bytes.Equal(payload, []byte{0xca, 0xfe}) {
		t.Errorf("payload = %x, want cafe", payload)
	}
}

// ---------------------------------------------------------------------------
// Encoding properties and errors
// ---------------------------------------------------------------------------

func TestMarshalIsCanonical(t *testing.T) {
	rt, e := attach(t)

	tmpl := engine.TFunctor("k", engine.TString("v"), engine.TFloat(0.25), engine.TAny())
	a, err := Marshal(rt, recordOf(t, e, tmpl))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(rt, recordOf(t, e, tmpl))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("equal records encode differently:\n%x\n%x", a, b)
	}
}

func TestUnmarshalReleasesTemporaryAtoms(t *testing.T) {
	srcRT, src := attach(t)
	dstRT, _ := attach(t)

	data, err := Marshal(srcRT, recordOf(t, src, engine.TAtomChars("transient")))
	if err != nil {
		t.Fatal(err)
	}
	r, err := Unmarshal(dstRT, data)
	if err != nil {
		t.Fatal(err)
	}
	a, ok := dstRT.Atoms().Lookup("transient")
	if !ok {
		t.Fatal("atom was not interned")
	}
	if refs := dstRT.Atoms().Refs(a); refs != 1 {
		t.Errorf("refs with the record alive = %d, want 1", refs)
	}
	dstRT.Erase(r)
	if refs := dstRT.Atoms().Refs(a); refs != 0 {
		t.Errorf("refs after Erase = %d, want 0", refs)
	}
}

func TestMarshalErasedRecord(t *testing.T) {
	rt, e := attach(t)

	r := recordOf(t, e, engine.TInt(1))
	rt.Erase(r)
	if _, err := Marshal(rt, r); !errors.Is(err, engine.ErrRecordErased) {
		t.Errorf("Marshal of an erased record = %v, want ErrRecordErased", err)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	rt, _ := attach(t)

	encode := func(v any) []byte {
		data, err := cbor.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		is   error
	}{
		{"garbage", []byte{0xff, 0x00}, nil},
		{"version", encode(map[int]any{1: 99, 2: 0, 3: []any{}}), ErrVersion},
		{"empty cells", encode(map[int]any{1: Version, 2: 0, 3: []any{}}), nil},
		{"bad big", encode(map[int]any{1: Version, 3: []any{map[int]any{1: int(engine.CellBigInt), 4: "12x"}}}), nil},
		{"missing atom", encode(map[int]any{1: Version, 3: []any{map[int]any{1: int(engine.CellAtom)}}}), nil},
		{"zero arity", encode(map[int]any{1: Version, 3: []any{map[int]any{1: int(engine.CellCompound), 5: map[int]any{1: "f"}}}}), nil},
		{"var count", encode(map[int]any{1: Version, 2: 3, 3: []any{map[int]any{1: int(engine.CellVar)}}}), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Unmarshal(rt, tc.data)
			if err == nil {
				rt.Erase(r)
				t.Fatal("Unmarshal should fail")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("error = %v, want %v", err, tc.is)
			}
		})
	}
}
