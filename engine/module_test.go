package engine

import (
	"context"
	"testing"
)

func succeed(*Engine, Term, *ForeignContext) bool { return true }

func TestRegisterForeign(t *testing.T) {
	rt, _ := newTestEngine(t)

	var seen []string
	rt.OnForeignRegistered = func(p *Predicate) { seen = append(seen, p.Indicator(rt)) }

	p, err := rt.RegisterForeign("lists", "ok", 2, succeed, PredNoTrace)
	if err != nil {
		t.Fatalf("RegisterForeign failed: %v", err)
	}
	if got := p.Indicator(rt); got != "lists:ok/2" {
		t.Errorf("Indicator = %s, want lists:ok/2", got)
	}
	found, ok := rt.Predicate("lists", "ok", 2)
	if !ok || found != p {
		t.Error("Predicate should find the registration")
	}
	if _, ok := rt.Predicate("lists", "ok", 3); ok {
		t.Error("arity is part of the predicate identity")
	}
	if len(seen) != 1 || seen[0] != "lists:ok/2" {
		t.Errorf("OnForeignRegistered saw %v", seen)
	}

	mods := rt.Modules()
	want := map[string]bool{"lists": true, "user": true, "system": true}
	for _, m := range mods {
		delete(want, m)
	}
	if len(want) != 0 {
		t.Errorf("Modules = %v, missing %v", mods, want)
	}
}

func TestReRegistrationAbolishes(t *testing.T) {
	rt, _ := newTestEngine(t)

	old, _ := rt.RegisterForeign("", "p", 0, succeed, 0)
	fresh, _ := rt.RegisterForeign("user", "p", 0, succeed, PredSigAtomic)
	if !old.Abolished() {
		t.Error("the replaced definition should be abolished")
	}
	if fresh.Abolished() {
		t.Error("the new definition is live")
	}
	if p, _ := rt.Predicate("user", "p", 0); p != fresh {
		t.Error("lookup should return the new definition")
	}

	if !rt.Abolish("user", "p", 0) {
		t.Fatal("Abolish failed")
	}
	if _, ok := rt.Predicate("user", "p", 0); ok || !fresh.Abolished() {
		t.Error("Abolish should remove the predicate")
	}
	if rt.Abolish("user", "p", 0) {
		t.Error("a second Abolish finds nothing")
	}
}

func TestRegisterForeignRejectsBadInput(t *testing.T) {
	rt, _ := newTestEngine(t)

	tests := []struct {
		name  string
		pname string
		arity int
		fn    ForeignFunc
	}{
		{"nil function", "f", 1, nil},
		{"negative arity", "f", -1, succeed},
		{"empty name", "", 0, succeed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := rt.RegisterForeign("user", tc.pname, tc.arity, tc.fn, 0); err == nil {
				t.Error("RegisterForeign should fail")
			}
		})
	}
}

func TestRegisterExtensions(t *testing.T) {
	rt, _ := newTestEngine(t)

	err := rt.RegisterExtensions("ext", []Extension{
		{Name: "a", Arity: 0, Func: succeed},
		{Name: "b", Arity: 1, Func: succeed, Flags: PredNondeterministic},
		{Name: "c", Arity: 1, Func: nil},
		{Name: "d", Arity: 0, Func: succeed},
	})
	if err == nil {
		t.Fatal("an invalid entry should stop registration")
	}
	m, ok := rt.LookupModule("ext")
	if !ok {
		t.Fatal("module ext should exist")
	}
	if n := len(m.Predicates()); n != 2 {
		t.Errorf("registered %d predicates, want 2", n)
	}
	if _, ok := rt.Predicate("ext", "d", 0); ok {
		t.Error("entries after the invalid one must not be registered")
	}
}

func TestTransparentContextModule(t *testing.T) {
	rt, e := newTestEngine(t)

	var ctxModule string
	spy := func(e *Engine, _ Term, fc *ForeignContext) bool {
		ctxModule = rt.AtomName(fc.Module.Name)
		return true
	}
	opaque, _ := rt.RegisterForeign("lib", "opaque", 0, spy, 0)
	transparent, _ := rt.RegisterForeign("lib", "transparent", 0, spy, PredTransparent)
	caller := rt.Module("app")

	tests := []struct {
		pred *Predicate
		want string
	}{
		{opaque, "lib"},
		{transparent, "app"},
	}
	for _, tc := range tests {
		if _, err := e.CallPredicate(context.Background(), caller, tc.pred, 0, QueryNormal); err != nil {
			t.Fatalf("CallPredicate failed: %v", err)
		}
		if ctxModule != tc.want {
			t.Errorf("%s ran in %s, want %s", tc.pred.Indicator(rt), ctxModule, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Module qualification
// ---------------------------------------------------------------------------

func TestStripModule(t *testing.T) {
	rt, e := newTestEngine(t)

	tests := []struct {
		name       string
		raw        Template
		wantModule string
		wantPlain  string
	}{
		{"unqualified", TFunctor("member", TAtomChars("x")), "user", "member(x)"},
		{"qualified", TFunctor(":", TAtomChars("lists"), TFunctor("member", TAtomChars("x"))), "lists", "member(x)"},
		{"nested", TFunctor(":", TAtomChars("a"), TFunctor(":", TAtomChars("b"), TAtomChars("goal"))), "b", "goal"},
		{"integer qualifier", TFunctor(":", TInt(1), TAtomChars("goal")), "user", ":(1,goal)"},
		{"inner integer qualifier", TFunctor(":", TAtomChars("a"), TFunctor(":", TInt(1), TAtomChars("goal"))), "a", ":(1,goal)"},
		{"string qualifier", TFunctor(":", TString("m"), TAtomChars("goal")), "user", `:("m",goal)`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := build(t, e, tc.raw)
			plain := e.NewTermRef()
			m, ok := e.StripModule(raw, plain)
			if !ok {
				t.Fatal("StripModule failed")
			}
			if got := rt.AtomName(m.Name); got != tc.wantModule {
				t.Errorf("module = %s, want %s", got, tc.wantModule)
			}
			if got := e.TermString(plain); got != tc.wantPlain {
				t.Errorf("plain = %s, want %s", got, tc.wantPlain)
			}
		})
	}
}

func TestStripModuleSharesVariables(t *testing.T) {
	_, e := newTestEngine(t)

	x := e.NewTermRef()
	raw := build(t, e, TFunctor(":", TAtomChars("m"), TTerm(x)))
	plain := e.NewTermRef()
	if _, ok := e.StripModule(raw, plain); !ok {
		t.Fatal("StripModule failed")
	}
	if !e.UnifyAtomChars(plain, "bound") {
		t.Fatal("UnifyAtomChars failed")
	}
	if name, _ := e.GetAtomChars(x); name != "bound" {
		t.Errorf("X = %s, want bound", e.TermString(x))
	}
}

func TestQualifyUsesContextModule(t *testing.T) {
	rt, e := newTestEngine(t)

	var got []string
	qualify := func(e *Engine, args Term, fc *ForeignContext) bool {
		q := e.NewTermRef()
		if !e.Qualify(args, q) {
			return false
		}
		got = append(got, e.TermString(q))
		return true
	}
	pred, err := rt.RegisterForeign("lib", "qualify", 1, qualify, PredTransparent)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		goal Template
		want string
	}{
		{TAtomChars("run"), ":(app,run)"},
		{TFunctor(":", TAtomChars("other"), TAtomChars("run")), ":(other,run)"},
	}
	for _, tc := range tests {
		got = got[:0]
		arg := build(t, e, tc.goal)
		if _, err := e.CallPredicate(context.Background(), rt.Module("app"), pred, arg, QueryNormal); err != nil {
			t.Fatalf("CallPredicate failed: %v", err)
		}
		if len(got) != 1 || got[0] != tc.want {
			t.Errorf("Qualify gave %v, want %s", got, tc.want)
		}
	}

	q := e.NewTermRef()
	if !e.Qualify(build(t, e, TAtomChars("top")), q) {
		t.Fatal("Qualify failed")
	}
	if s := e.TermString(q); s != ":(user,top)" {
		t.Errorf("outside a query Qualify gave %s, want :(user,top)", s)
	}
	if e.ContextModule() != rt.Module("user") {
		t.Error("context module outside a query should be user")
	}
}

func TestGetModule(t *testing.T) {
	rt, e := newTestEngine(t)

	m, ok := e.GetModule(build(t, e, TAtomChars("fresh_module")))
	if !ok || rt.AtomName(m.Name) != "fresh_module" {
		t.Fatalf("GetModule = %v %v", m, ok)
	}
	if _, found := rt.LookupModule("fresh_module"); !found {
		t.Error("GetModule should create the module")
	}
	if again, _ := e.GetModule(build(t, e, TAtomChars("fresh_module"))); again != m {
		t.Error("GetModule should return the same module for the same name")
	}
	for _, tmpl := range []Template{TInt(1), TString("s"), TAny(), TFunctor("f", TInt(1))} {
		if _, ok := e.GetModule(build(t, e, tmpl)); ok {
			t.Errorf("GetModule(%s) should fail", e.TermString(build(t, e, tmpl)))
		}
	}

	h := e.NewTermRef()
	if !e.UnifyModule(h, m) {
		t.Fatal("UnifyModule failed")
	}
	if name, _ := e.GetAtomChars(h); name != "fresh_module" {
		t.Errorf("UnifyModule bound %s", e.TermString(h))
	}
}

func TestPredFlagsString(t *testing.T) {
	tests := []struct {
		flags PredFlags
		want  string
	}{
		{0, "none"},
		{PredNondeterministic | PredTransparent, "transparent|nondeterministic"},
		{PredSigAtomic, "sig_atomic"},
	}
	for _, tc := range tests {
		if got := tc.flags.String(); got != tc.want {
			t.Errorf("PredFlags(%d) = %q, want %q", tc.flags, got, tc.want)
		}
	}
}
