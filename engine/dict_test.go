package engine

import (
	"errors"
	"testing"
)

func putPoint(t *testing.T, e *Engine) Term {
	t.Helper()
	rt := e.Runtime()
	vals := e.NewTermRefs(2)
	e.PutAtomChars(vals, "x")
	e.PutAtomChars(vals+1, "y")
	d := e.NewTermRef()
	keys := []DictKey{KeyInt(1), KeyAtom(rt.NewAtom("a"))}
	if err := e.PutDict(d, rt.NewAtom("point"), keys, vals); err != nil {
		t.Fatalf("PutDict failed: %v", err)
	}
	return d
}

func TestPutDict(t *testing.T) {
	_, e := newTestEngine(t)

	d := putPoint(t, e)
	if !e.IsDict(d) {
		t.Fatal("IsDict should hold")
	}
	if got := e.TermString(d); got != "point{1:x,a:y}" {
		t.Errorf("dict = %s, want point{1:x,a:y}", got)
	}
	keys, ok := e.GetDictKeys(d)
	if !ok || len(keys) != 2 {
		t.Fatalf("GetDictKeys = %v %v", keys, ok)
	}
	if n, isInt := keys[0].Int(); !isInt || n != 1 {
		t.Errorf("first key = %v, want 1", keys[0])
	}

	tag := e.NewTermRef()
	if !e.GetDictTag(d, tag) {
		t.Fatal("GetDictTag failed")
	}
	if s, _ := e.GetAtomChars(tag); s != "point" {
		t.Errorf("tag = %q, want point", s)
	}
}

func TestGetDictKey(t *testing.T) {
	rt, e := newTestEngine(t)

	d := putPoint(t, e)
	v := e.NewTermRef()
	if !e.GetDictKey(d, KeyAtom(rt.NewAtom("a")), v) {
		t.Fatal("key a should be present")
	}
	if s, _ := e.GetAtomChars(v); s != "y" {
		t.Errorf("value of a = %q, want y", s)
	}
	if !e.GetDictKey(d, KeyInt(1), v) {
		t.Fatal("key 1 should be present")
	}
	if e.GetDictKey(d, KeyAtom(rt.NewAtom("zz")), v) {
		t.Error("key zz should be absent")
	}
	if e.GetDictKey(build(t, e, TAtomChars("point")), KeyInt(1), v) {
		t.Error("GetDictKey on a non-dict should fail")
	}
}

func TestPutDictRejectsBadKeys(t *testing.T) {
	rt, e := newTestEngine(t)

	vals := e.NewTermRefs(2)
	d := e.NewTermRef()
	a, b := rt.NewAtom("a"), rt.NewAtom("b")

	tests := []struct {
		name string
		keys []DictKey
		want error
	}{
		{"misordered atoms", []DictKey{KeyAtom(b), KeyAtom(a)}, ErrDictOrder},
		{"duplicate", []DictKey{KeyAtom(a), KeyAtom(a)}, ErrDictOrder},
		{"atom before int", []DictKey{KeyAtom(a), KeyInt(3)}, ErrDictOrder},
		{"integer out of range", []DictKey{KeyInt(MaxTaggedInt + 1), KeyAtom(a)}, ErrDictKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := e.PutDict(d, AtomNone, tc.keys, vals); !errors.Is(err, tc.want) {
				t.Errorf("PutDict error = %v, want %v", err, tc.want)
			}
			if !e.IsVariable(d) {
				t.Error("a rejected PutDict must leave the handle untouched")
			}
		})
	}
}

func TestDictWithoutTag(t *testing.T) {
	_, e := newTestEngine(t)

	d := e.NewTermRef()
	if err := e.PutDict(d, AtomNone, nil, 0); err != nil {
		t.Fatalf("PutDict of an empty dict failed: %v", err)
	}
	tag := e.NewTermRef()
	e.GetDictTag(d, tag)
	if !e.IsVariable(tag) {
		t.Error("an untagged dict has an unbound tag")
	}
	if keys, ok := e.GetDictKeys(d); !ok || len(keys) != 0 {
		t.Errorf("GetDictKeys = %v %v", keys, ok)
	}
}

func TestCompareDictKeys(t *testing.T) {
	rt, _ := newTestEngine(t)

	ordered := []DictKey{KeyInt(-5), KeyInt(2), KeyAtom(rt.NewAtom("alpha")), KeyAtom(rt.NewAtom("beta"))}
	for i := 1; i < len(ordered); i++ {
		if rt.CompareDictKeys(ordered[i-1], ordered[i]) >= 0 {
			t.Errorf("%s should sort before %s", rt.KeyString(ordered[i-1]), rt.KeyString(ordered[i]))
		}
	}
}
