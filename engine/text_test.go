package engine

import (
	"math"
	"strings"
	"testing"
)

func TestGetChars(t *testing.T) {
	_, e := newTestEngine(t)

	tests := []struct {
		name  string
		term  Template
		flags CvtFlags
		want  string
		ok    bool
	}{
		{"atom", TAtomChars("hello"), CvtAtom, "hello", true},
		{"atom not allowed", TAtomChars("hello"), CvtString, "", false},
		{"string", TString("wörld"), CvtString, "wörld", true},
		{"integer", TInt(-12), CvtInteger, "-12", true},
		{"float", TFloat(2.5), CvtFloat, "2.5", true},
		{"integral float", TFloat(3), CvtNumber, "3.0", true},
		{"code list", TList(TInt('h'), TInt('i')), CvtCodeList, "hi", true},
		{"char list", TList(TAtomChars("o"), TAtomChars("k")), CvtCharList, "ok", true},
		{"mixed list", TList(TInt('h'), TAtomChars("i")), CvtCodeList, "", false},
		{"high surrogate code", TList(TInt('a'), TInt(0xD800)), CvtList, "", false},
		{"low surrogate code", TList(TInt(0xDFFF)), CvtCodeList, "", false},
		{"code above max", TList(TInt(0x110000)), CvtCodeList, "", false},
		{"negative code", TList(TInt(-1)), CvtCodeList, "", false},
		{"last valid code", TList(TInt(0x10FFFF)), CvtCodeList, "\U0010FFFF", true},
		{"invalid char atom", TList(TAtomChars("\xff")), CvtCharList, "", false},
		{"empty list", TNil(), CvtList, "", true},
		{"empty list as atom", TNil(), CvtAtom, "[]", true},
		{"compound", TFunctor("f", TInt(1)), CvtAll, "", false},
		{"write", TFunctor("f", TAtomChars("a"), TAtomChars("B"), TString("s")), CvtWrite, `f(a,'B',"s")`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := build(t, e, tc.term)
			got, ok := e.GetChars(h, tc.flags)
			if ok != tc.ok || got != tc.want {
				t.Errorf("GetChars = %q %v, want %q %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestGetCharsVariable(t *testing.T) {
	_, e := newTestEngine(t)

	v := build(t, e, TAny())
	if _, ok := e.GetChars(v, CvtAtomic); ok {
		t.Error("a variable should not convert without CvtVariable")
	}
	if s, ok := e.GetChars(v, CvtVariable); !ok || !strings.HasPrefix(s, "_") {
		t.Errorf("variable name = %q %v", s, ok)
	}
}

func TestGetCharsExRaises(t *testing.T) {
	_, e := newTestEngine(t)

	h := build(t, e, TFunctor("f", TInt(1)))
	if _, ok := e.GetCharsEx(h, CvtAtom); ok {
		t.Fatal("GetCharsEx of f(1) should fail")
	}
	if got := exceptionString(e); !strings.HasPrefix(got, "error(type_error(atom,f(1)),") {
		t.Errorf("unexpected exception %q", got)
	}
}

func TestGetCharsExSurrogate(t *testing.T) {
	_, e := newTestEngine(t)

	h := build(t, e, TList(TInt('a'), TInt(0xD800)))
	if _, ok := e.GetCharsEx(h, CvtList); ok {
		t.Fatal("GetCharsEx of a surrogate code should fail")
	}
	if got := exceptionString(e); !strings.HasPrefix(got, "error(type_error(list,") {
		t.Errorf("unexpected exception %q", got)
	}
}

func TestLatin1Representation(t *testing.T) {
	_, e := newTestEngine(t)

	ok := build(t, e, TAtomChars("café"))
	txt, good := e.GetText(ok, CvtAtom|RepISOLatin1)
	if !good || txt.Encoding != EncLatin1 || len(txt.Bytes) != 4 {
		t.Errorf("GetText = %+v %v", txt, good)
	}

	bad := build(t, e, TAtomChars("日本"))
	if _, good := e.GetChars(bad, CvtAtom|RepISOLatin1|CvtException); good {
		t.Fatal("Latin-1 conversion of Japanese text should fail")
	}
	if got := exceptionString(e); !strings.HasPrefix(got, "error(representation_error(encoding),") {
		t.Errorf("unexpected exception %q", got)
	}
}

func TestPutText(t *testing.T) {
	_, e := newTestEngine(t)

	h := e.NewTermRef()
	latin := Text{Encoding: EncLatin1, Bytes: []byte{'n', 0xe9}}
	if !e.PutText(h, CharsString, latin) {
		t.Fatal("PutText failed")
	}
	if s, _ := e.GetString(h); s != "né" {
		t.Errorf("string = %q, want né", s)
	}

	wide := Text{Encoding: EncWide, Runes: []rune("λx")}
	if !e.PutText(h, CharsCodes, wide) {
		t.Fatal("PutText of wide text failed")
	}
	if s, _ := e.GetChars(h, CvtCodeList); s != "λx" {
		t.Errorf("codes = %q, want λx", s)
	}

	if e.PutText(h, CharsAtom, Text{Encoding: EncUTF8, Bytes: []byte{0xff}}) {
		t.Error("invalid UTF-8 should be rejected")
	}
}

func TestUnifyChars(t *testing.T) {
	_, e := newTestEngine(t)

	codes := build(t, e, TList(TInt('a'), TInt('b')))
	if !e.UnifyListCodes(codes, "ab") {
		t.Error("[0'a,0'b] should unify with the codes of ab")
	}
	if e.UnifyListChars(codes, "ab") {
		t.Error("a code list is not a char list")
	}
	v := build(t, e, TAny())
	if !e.UnifyListChars(v, "xy") {
		t.Fatal("UnifyListChars on a variable failed")
	}
	if got := e.TermString(v); got != "[x,y]" {
		t.Errorf("chars = %s, want [x,y]", got)
	}
}

func TestTextLen(t *testing.T) {
	tests := []struct {
		txt  Text
		want int
	}{
		{TextOf("héllo"), 5},
		{Text{Encoding: EncLatin1, Bytes: []byte{0xe9, 'a'}}, 2},
		{Text{Encoding: EncWide, Runes: []rune("日本")}, 2},
	}
	for _, tc := range tests {
		if got := tc.txt.Len(); got != tc.want {
			t.Errorf("%s text Len = %d, want %d", tc.txt.Encoding, got, tc.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{1, "1.0"},
		{-0.5, "-0.5"},
		{1e22, "1.0e22"},
		{1.5e-7, "1.5e-07"},
		{math.Inf(1), "1.0Inf"},
		{math.Inf(-1), "-1.0Inf"},
		{math.NaN(), "1.5NaN"},
	}
	for _, tc := range tests {
		if got := formatFloat(tc.f); got != tc.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tc.f, got, tc.want)
		}
	}
}
