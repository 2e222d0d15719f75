package jsonterm

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/plfli/engine"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	rt := engine.New(engine.DefaultOptions())
	e, err := rt.Attach()
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(rt.Shutdown)
	return e
}

func parse(t *testing.T, e *engine.Engine, doc string, opts Options) engine.Term {
	t.Helper()
	h := e.NewTermRef()
	ok, err := Unify(e, h, []byte(doc), opts)
	if err != nil || !ok {
		t.Fatalf("Unify(%s) = %v, %v", doc, ok, err)
	}
	return h
}

// ---------------------------------------------------------------------------
// JSON to term
// ---------------------------------------------------------------------------

func TestJSONToTerm(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"int", `42`, "42"},
		{"negative", `-7`, "-7"},
		{"big", `123456789012345678901234567890`, "123456789012345678901234567890"},
		{"float", `2.5`, "2.5"},
		{"exponent", `1e3`, "1000.0"},
		{"string", `"hi"`, `"hi"`},
		{"true", `true`, "true"},
		{"null", `null`, "null"},
		{"empty array", `[]`, "[]"},
		{"array", `[1,"a",false]`, `[1,"a",false]`},
		{"empty object", `{}`, "_{}"},
		{"object", `{"b":1,"a":2}`, "_{a:2,b:1}"},
		{"int keys first", `{"x":1,"10":2,"2":3}`, "_{2:3,10:2,x:1}"},
		{"non-canonical key", `{"007":1}`, "_{'007':1}"},
		{"nested", `{"xs":[{"k":null}]}`, "_{xs:[_{k:null}]}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := parse(t, e, tc.doc, DefaultOptions())
			got := e.TermString(h)
			// Unbound tags print as a variable name; normalize them.
			if strings.Contains(tc.want, "_{") {
				got = normalizeTags(got)
			}
			if got != tc.want {
				t.Errorf("%s became %s, want %s", tc.doc, got, tc.want)
			}
		})
	}
}

// normalizeTags replaces variable names before '{' with '_'.
func normalizeTags(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			j := i + 1
			for j < len(s) && (s[j] == 'G' || s[j] == 'L' || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			if j < len(s) && s[j] == '{' {
				b.WriteByte('_')
				i = j - 1
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func TestJSONOptions(t *testing.T) {
	e := newTestEngine(t)
	rt := e.Runtime()

	opts := DefaultOptions()
	opts.Tag = rt.NewAtom("json")
	opts.Null = "@null"
	opts.StringsAsAtoms = true

	h := parse(t, e, `{"name":"bob","v":null}`, opts)
	if got := e.TermString(h); got != "json{name:bob,v:'@null'}" {
		t.Errorf("got %s", got)
	}

	tag := e.NewTermRef()
	if !e.GetDictTag(h, tag) {
		t.Fatal("GetDictTag failed")
	}
	if name, _ := e.GetAtomChars(tag); name != "json" {
		t.Errorf("tag = %s, want json", e.TermString(tag))
	}
}

func TestUnifyWithExisting(t *testing.T) {
	e := newTestEngine(t)

	pattern := e.NewTermRef()
	x := e.NewTermRef()
	if !e.UnifyTerm(pattern, engine.TList(engine.TInt(1), engine.TTerm(x))) {
		t.Fatal("UnifyTerm failed")
	}
	ok, err := Unify(e, pattern, []byte(`[1, "two"]`), DefaultOptions())
	if err != nil || !ok {
		t.Fatalf("Unify = %v, %v", ok, err)
	}
	if s, _ := e.GetString(x); s != "two" {
		t.Errorf("X = %s, want \"two\"", e.TermString(x))
	}

	ok, err = Unify(e, pattern, []byte(`[2, "two"]`), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("[1,\"two\"] should not unify with [2,\"two\"]")
	}
}

func TestJSONParseErrors(t *testing.T) {
	e := newTestEngine(t)

	for _, doc := range []string{``, `{`, `[1,]`, `1 2`, `{"a":1} x`} {
		h := e.NewTermRef()
		if _, err := Unify(e, h, []byte(doc), DefaultOptions()); err == nil {
			t.Errorf("Unify(%q) should fail", doc)
		}
		if !e.IsVariable(h) {
			t.Errorf("Unify(%q) bound the target", doc)
		}
	}
}

func TestDictKeysReleased(t *testing.T) {
	e := newTestEngine(t)
	rt := e.Runtime()

	parse(t, e, `{"only_in_this_doc":1}`, DefaultOptions())
	a, ok := rt.Atoms().Lookup("only_in_this_doc")
	if !ok {
		t.Fatal("key atom not interned")
	}
	if refs := rt.Atoms().Refs(a); refs != 0 {
		t.Errorf("key atom holds %d references after conversion, want 0", refs)
	}
}

// ---------------------------------------------------------------------------
// Term to JSON
// ---------------------------------------------------------------------------

func TestTermToJSON(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		tmpl engine.Template
		want string
	}{
		{"int", engine.TInt(3), `3`},
		{"float", engine.TFloat(0.5), `0.5`},
		{"string", engine.TString("s"), `"s"`},
		{"atom", engine.TAtomChars("abc"), `"abc"`},
		{"true", engine.TBool(true), `true`},
		{"null", engine.TAtomChars("null"), `null`},
		{"nil", engine.TNil(), `[]`},
		{"list", engine.TList(engine.TInt(1), engine.TString("x")), `[1,"x"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := e.NewTermRef()
			if !e.UnifyTerm(h, tc.tmpl) {
				t.Fatal("UnifyTerm failed")
			}
			out, err := Marshal(e, h, DefaultOptions())
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(out) != tc.want {
				t.Errorf("Marshal = %s, want %s", out, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	doc := `{"1":[true,null,{"deep":"x"}],"big":123456789012345678901234567890,"f":1.5,"s":"str"}`
	h := parse(t, e, doc, DefaultOptions())
	out, err := Marshal(e, h, DefaultOptions())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var want, got any
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output %s is not JSON: %v", out, err)
	}
	w, _ := json.Marshal(want)
	g, _ := json.Marshal(got)
	if string(w) != string(g) {
		t.Errorf("round trip changed the document:\n%s\n%s", w, g)
	}
}

func TestTermToJSONErrors(t *testing.T) {
	e := newTestEngine(t)

	cyclic := e.NewTermRef()
	x := e.NewTermRef()
	e.UnifyTerm(cyclic, engine.TPartialList(engine.TTerm(x), engine.TInt(1)))
	e.Unify(x, cyclic)

	tests := []struct {
		name string
		tmpl engine.Template
	}{
		{"variable", engine.TAny()},
		{"compound", engine.TFunctor("f", engine.TInt(1))},
		{"partial list", engine.TPartialList(engine.TAny(), engine.TInt(1))},
		{"improper list", engine.TPartialList(engine.TInt(2), engine.TInt(1))},
		{"infinity", engine.TFloat(math.Inf(1))},
		{"cyclic list", engine.TTerm(cyclic)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := e.NewTermRef()
			if !e.UnifyTerm(h, tc.tmpl) {
				t.Fatal("UnifyTerm failed")
			}
			if _, err := Marshal(e, h, DefaultOptions()); !errors.Is(err, ErrNotJSON) {
				t.Errorf("Marshal(%s) = %v, want ErrNotJSON", e.TermString(h), err)
			}
		})
	}
}

func TestCyclicDictTooDeep(t *testing.T) {
	e := newTestEngine(t)

	self := engine.KeyAtom(e.Runtime().NewAtom("self"))
	d := e.NewTermRef()
	hole := e.NewTermRef()
	if err := e.PutDict(d, engine.AtomNone, []engine.DictKey{self}, hole); err != nil {
		t.Fatal(err)
	}
	if !e.Unify(hole, d) {
		t.Fatal("cannot close the cycle")
	}
	if _, err := Marshal(e, d, DefaultOptions()); !errors.Is(err, ErrTooDeep) {
		t.Errorf("Marshal of a cyclic dict = %v, want ErrTooDeep", err)
	}
}
