package engine

import (
	"strings"
	"testing"
)

func TestSkipList(t *testing.T) {
	_, e := newTestEngine(t)

	cyclic := func() Term {
		tail := build(t, e, TAny())
		l := build(t, e, TPartialList(TTerm(tail), TInt(1), TInt(2)))
		if !e.Unify(tail, l) {
			t.Fatal("closing the cycle failed")
		}
		return l
	}

	tests := []struct {
		name   string
		list   func() Term
		kind   ListKind
		length int
	}{
		{"empty", func() Term { return build(t, e, TNil()) }, ListProper, 0},
		{"proper", func() Term { return build(t, e, TList(TInt(1), TInt(2), TInt(3))) }, ListProper, 3},
		{"partial", func() Term { return build(t, e, TPartialList(TAny(), TAtomChars("a"))) }, ListPartial, 1},
		{"unbound", func() Term { return build(t, e, TAny()) }, ListPartial, 0},
		{"not a list", func() Term { return build(t, e, TPartialList(TInt(9), TInt(1), TInt(2))) }, ListNotList, 2},
		{"atom", func() Term { return build(t, e, TAtomChars("x")) }, ListNotList, 0},
		{"cyclic", cyclic, ListCyclic, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, n := e.SkipList(tc.list(), 0)
			if kind != tc.kind {
				t.Errorf("kind = %s, want %s", kind, tc.kind)
			}
			if tc.length >= 0 && n != tc.length {
				t.Errorf("length = %d, want %d", n, tc.length)
			}
		})
	}
}

func TestSkipListTail(t *testing.T) {
	_, e := newTestEngine(t)

	l := build(t, e, TPartialList(TInt(7), TAtomChars("a"), TAtomChars("b")))
	tail := e.NewTermRef()
	if kind, _ := e.SkipList(l, tail); kind != ListNotList {
		t.Fatalf("kind = %s", kind)
	}
	if n, ok := e.GetInt64(tail); !ok || n != 7 {
		t.Errorf("tail = %d %v, want 7", n, ok)
	}
}

func TestListAccess(t *testing.T) {
	_, e := newTestEngine(t)

	l := build(t, e, TList(TAtomChars("a"), TAtomChars("b")))
	h, tl := e.NewTermRef(), e.NewTermRef()
	if !e.GetList(l, h, tl) {
		t.Fatal("GetList failed")
	}
	if s, _ := e.GetAtomChars(h); s != "a" {
		t.Errorf("head = %q", s)
	}
	if e.ListLength(tl) != 1 {
		t.Errorf("tail length = %d, want 1", e.ListLength(tl))
	}
	if e.GetNil(l) {
		t.Error("[a,b] is not []")
	}

	v := build(t, e, TAny())
	if !e.UnifyList(v, h, tl) {
		t.Fatal("UnifyList on a variable should build a cell")
	}
	if !e.Equal(v, l) {
		t.Errorf("rebuilt list %s differs from %s", e.TermString(v), e.TermString(l))
	}
}

func TestListExErrors(t *testing.T) {
	_, e := newTestEngine(t)

	h, tl := e.NewTermRef(), e.NewTermRef()
	if e.GetListEx(build(t, e, TInt(3)), h, tl) {
		t.Fatal("GetListEx of 3 should fail")
	}
	if got := exceptionString(e); !strings.HasPrefix(got, "error(type_error(list,3),") {
		t.Errorf("unexpected exception %q", got)
	}
	e.ClearException()

	if e.GetNilEx(build(t, e, TList(TInt(1)))) || e.HasException() {
		t.Fatal("GetNilEx of [1] should fail quietly")
	}
	if e.GetNilEx(build(t, e, TAtomChars("foo"))) || !e.HasException() {
		t.Error("GetNilEx of foo should raise a type error")
	}
}
