// Package jsonterm converts between JSON documents and terms.
//
// Objects map to dicts, arrays to lists, strings to strings (or atoms),
// numbers to integers or floats, and true, false and null to atoms.
// Object keys that are canonical decimal integers become integer keys.
package jsonterm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/plfli/engine"
)

var (
	// ErrNotJSON is returned when a term has no JSON rendering.
	ErrNotJSON = errors.New("term is not JSON")
	// ErrTooDeep is returned for documents or terms nested beyond MaxDepth.
	ErrTooDeep = errors.New("nesting too deep")
)

// MaxDepth bounds nesting in both directions. Terms reached through a cycle
// hit it instead of looping.
const MaxDepth = 10000

// Options control the mapping.
type Options struct {
	// Tag is the tag given to dicts built from objects. engine.AtomNone
	// leaves it unbound.
	Tag engine.Atom
	// Null, True and False name the atoms used for the JSON constants.
	Null, True, False string
	// StringsAsAtoms makes JSON strings atoms instead of strings.
	StringsAsAtoms bool
}

// DefaultOptions returns untagged dicts, string values and the atoms null,
// true and false.
func DefaultOptions() Options {
	return Options{Tag: engine.AtomNone, Null: "null", True: "true", False: "false"}
}

// ---------------------------------------------------------------------------
// JSON to term
// ---------------------------------------------------------------------------

// Unify parses data and unifies t with the resulting term. It returns false
// without error when the document parses but does not unify with t.
func Unify(e *engine.Engine, t engine.Term, data []byte, opts Options) (bool, error) {
	v, err := decode(bytes.NewReader(data))
	if err != nil {
		return false, err
	}

	fid := e.OpenForeignFrame()
	if fid == 0 {
		return false, fmt.Errorf("jsonterm: %w", engine.ErrException)
	}
	defer e.CloseForeignFrame(fid)

	h := e.NewTermRef()
	if h == 0 {
		return false, fmt.Errorf("jsonterm: %w", engine.ErrException)
	}
	if err := Put(e, h, v, opts); err != nil {
		return false, err
	}
	return e.Unify(t, h), nil
}

func decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("jsonterm: parsing JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("jsonterm: parsing JSON: trailing data after document")
	}
	return v, nil
}

// Put makes t the term for v, a value as produced by encoding/json
// (json.Number or float64 for numbers).
func Put(e *engine.Engine, t engine.Term, v any, opts Options) error {
	b := builder{e: e, rt: e.Runtime(), opts: opts}
	defer b.release()
	return b.put(t, v, 0)
}

type builder struct {
	e    *engine.Engine
	rt   *engine.Runtime
	opts Options
	held []engine.Atom
}

func (b *builder) release() {
	for _, a := range b.held {
		b.rt.UnregisterAtom(a)
	}
}

func (b *builder) fail(what string) error {
	return fmt.Errorf("jsonterm: building %s: %w", what, engine.ErrException)
}

func (b *builder) put(t engine.Term, v any, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("jsonterm: %w", ErrTooDeep)
	}
	e := b.e
	switch x := v.(type) {
	case nil:
		e.PutAtomChars(t, b.opts.Null)
	case bool:
		if x {
			e.PutAtomChars(t, b.opts.True)
		} else {
			e.PutAtomChars(t, b.opts.False)
		}
	case string:
		if b.opts.StringsAsAtoms {
			e.PutAtomChars(t, x)
		} else if !e.PutString(t, x) {
			return b.fail("string")
		}
	case json.Number:
		return b.putNumber(t, x)
	case float64:
		return b.putNumber(t, json.Number(strconv.FormatFloat(x, 'g', -1, 64)))
	case []any:
		return b.putList(t, x, depth)
	case map[string]any:
		return b.putDict(t, x, depth)
	default:
		return fmt.Errorf("jsonterm: unsupported value of type %T", v)
	}
	return nil
}

func (b *builder) putNumber(t engine.Term, n json.Number) error {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			if !b.e.PutInt64(t, i) {
				return b.fail("integer")
			}
			return nil
		}
		if z, ok := new(big.Int).SetString(s, 10); ok {
			if !b.e.PutBigInt(t, z) {
				return b.fail("integer")
			}
			return nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("jsonterm: number %s: %w", s, err)
	}
	if !b.e.PutFloat(t, f) {
		return b.fail("float")
	}
	return nil
}

func (b *builder) putList(t engine.Term, elems []any, depth int) error {
	e := b.e
	if len(elems) == 0 {
		e.PutNil(t)
		return nil
	}
	refs := e.NewTermRefs(len(elems))
	if refs == 0 {
		return b.fail("list")
	}
	handles := make([]engine.Term, len(elems))
	for i, el := range elems {
		handles[i] = refs + engine.Term(i)
		if err := b.put(handles[i], el, depth+1); err != nil {
			return err
		}
	}
	if !e.ConsListV(t, handles) {
		return b.fail("list")
	}
	return nil
}

type entry struct {
	key   engine.DictKey
	value any
}

func (b *builder) putDict(t engine.Term, obj map[string]any, depth int) error {
	e := b.e
	entries := make([]entry, 0, len(obj))
	for k, v := range obj {
		entries = append(entries, entry{b.dictKey(k), v})
	}
	slices.SortFunc(entries, func(x, y entry) int { return b.rt.CompareDictKeys(x.key, y.key) })

	keys := make([]engine.DictKey, len(entries))
	var values engine.Term
	if len(entries) > 0 {
		if values = e.NewTermRefs(len(entries)); values == 0 {
			return b.fail("dict")
		}
	}
	for i, en := range entries {
		keys[i] = en.key
		if err := b.put(values+engine.Term(i), en.value, depth+1); err != nil {
			return err
		}
	}
	if err := e.PutDict(t, b.opts.Tag, keys, values); err != nil {
		return fmt.Errorf("jsonterm: building dict: %w", err)
	}
	return nil
}

// dictKey maps an object key to a dict key. Only the canonical spelling of
// an integer in the small integer range becomes an integer key, so "007"
// stays an atom.
func (b *builder) dictKey(k string) engine.DictKey {
	if n, err := strconv.ParseInt(k, 10, 64); err == nil && strconv.FormatInt(n, 10) == k &&
		n >= engine.MinTaggedInt && n <= engine.MaxTaggedInt {
		return engine.KeyInt(n)
	}
	a := b.rt.NewAtom(k)
	b.held = append(b.held, a)
	return engine.KeyAtom(a)
}

// ---------------------------------------------------------------------------
// Term to JSON
// ---------------------------------------------------------------------------

// Marshal renders t as JSON text.
func Marshal(e *engine.Engine, t engine.Term, opts Options) ([]byte, error) {
	v, err := Value(e, t, opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Value converts t to a value encoding/json can marshal: map[string]any for
// dicts, []any for proper lists, and string, bool, nil, int64, json.Number
// or float64 for atomic terms.
func Value(e *engine.Engine, t engine.Term, opts Options) (any, error) {
	fid := e.OpenForeignFrame()
	if fid == 0 {
		return nil, fmt.Errorf("jsonterm: %w", engine.ErrException)
	}
	defer e.CloseForeignFrame(fid)
	return value(e, t, opts, 0)
}

func value(e *engine.Engine, t engine.Term, opts Options, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("jsonterm: %w", ErrTooDeep)
	}
	switch e.TermType(t) {
	case engine.KindNil:
		return []any{}, nil
	case engine.KindAtom:
		name, _ := e.GetAtomChars(t)
		switch name {
		case opts.Null:
			return nil, nil
		case opts.True:
			return true, nil
		case opts.False:
			return false, nil
		}
		return name, nil
	case engine.KindString:
		s, _ := e.GetString(t)
		return s, nil
	case engine.KindInteger:
		if n, ok := e.GetInt64(t); ok {
			return n, nil
		}
		z, _ := e.GetBigInt(t)
		return json.Number(z.String()), nil
	case engine.KindFloat:
		f, _ := e.GetFloat(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("jsonterm: %w: float %v", ErrNotJSON, f)
		}
		return f, nil
	case engine.KindListPair:
		return listValue(e, t, opts, depth)
	case engine.KindDict:
		return dictValue(e, t, opts, depth)
	}
	return nil, fmt.Errorf("jsonterm: %w: %s", ErrNotJSON, e.TermString(t))
}

func listValue(e *engine.Engine, t engine.Term, opts Options, depth int) (any, error) {
	kind, n := e.SkipList(t, 0)
	if kind != engine.ListProper {
		return nil, fmt.Errorf("jsonterm: %w: %s list", ErrNotJSON, kind)
	}
	out := make([]any, 0, n)
	l, h := e.NewTermRef(), e.NewTermRef()
	if l == 0 || h == 0 {
		return nil, fmt.Errorf("jsonterm: %w", engine.ErrException)
	}
	e.PutTerm(l, t)
	for e.GetList(l, h, l) {
		v, err := value(e, h, opts, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func dictValue(e *engine.Engine, t engine.Term, opts Options, depth int) (any, error) {
	rt := e.Runtime()
	keys, ok := e.GetDictKeys(t)
	if !ok {
		return nil, fmt.Errorf("jsonterm: %w: malformed dict", ErrNotJSON)
	}
	out := make(map[string]any, len(keys))
	v := e.NewTermRef()
	if v == 0 {
		return nil, fmt.Errorf("jsonterm: %w", engine.ErrException)
	}
	for _, k := range keys {
		e.GetDictKey(t, k, v)
		val, err := value(e, v, opts, depth+1)
		if err != nil {
			return nil, err
		}
		out[rt.KeyString(k)] = val
	}
	return out, nil
}
