// Package wire encodes records as CBOR so they can leave the process.
//
// Atom and functor indices are only meaningful inside one runtime, so the
// encoding carries names instead: text atoms by their text, blobs by type
// name plus the payload produced by the type's Save. Decoding interns the
// names again in the target runtime.
package wire

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/plfli/engine"
)

// Version is the format version written by Marshal.
const Version = 1

var (
	// ErrVersion is returned for data written by an unknown format version.
	ErrVersion = errors.New("wire: unsupported record version")
	// ErrUnknownBlobType is returned when a blob's type is not registered in
	// the decoding runtime.
	ErrUnknownBlobType = errors.New("wire: unknown blob type")
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxArrayElements: math.MaxInt32}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

type record struct {
	Version int    `cbor:"1,keyasint"`
	Vars    int    `cbor:"2,keyasint"`
	Cells   []cell `cbor:"3,keyasint"`
}

// cell mirrors engine.Cell with atoms and functors replaced by names.
type cell struct {
	Kind  uint8  `cbor:"1,keyasint"`
	Int   int64  `cbor:"2,keyasint,omitempty"`
	Float uint64 `cbor:"3,keyasint,omitempty"` // IEEE bits, keeps -0.0 and NaN payloads
	Text  string `cbor:"4,keyasint,omitempty"` // string value, or big integer in base 10
	Atom  *atom  `cbor:"5,keyasint,omitempty"` // atom, or functor name
	Arity int    `cbor:"6,keyasint,omitempty"`
}

type atom struct {
	Name string `cbor:"1,keyasint,omitempty"`
	Type string `cbor:"2,keyasint,omitempty"` // empty for text atoms
	Data []byte `cbor:"3,keyasint,omitempty"`
}

// Marshal serializes r to canonical CBOR. Equal records encode to equal
// bytes.
func Marshal(rt *engine.Runtime, r *engine.Record) ([]byte, error) {
	if r.Erased() {
		return nil, fmt.Errorf("wire: marshal: %w", engine.ErrRecordErased)
	}
	cells := r.Cells()
	out := record{Version: Version, Vars: r.Vars(), Cells: make([]cell, len(cells))}
	for i, c := range cells {
		wc := cell{Kind: uint8(c.Kind)}
		switch c.Kind {
		case engine.CellVar, engine.CellAttVar, engine.CellInt:
			wc.Int = c.Int
		case engine.CellFloat:
			wc.Float = math.Float64bits(c.Float)
		case engine.CellString:
			wc.Text = c.Text
		case engine.CellBigInt:
			wc.Text = c.Big.String()
		case engine.CellAtom:
			a, err := encodeAtom(rt, c.Atom)
			if err != nil {
				return nil, fmt.Errorf("wire: marshal cell %d: %w", i, err)
			}
			wc.Atom = a
		case engine.CellCompound:
			a, err := encodeAtom(rt, rt.FunctorName(c.Functor))
			if err != nil {
				return nil, fmt.Errorf("wire: marshal cell %d: %w", i, err)
			}
			wc.Atom = a
			wc.Arity = rt.FunctorArity(c.Functor)
		}
		out.Cells[i] = wc
	}
	return cborEncMode.Marshal(&out)
}

func encodeAtom(rt *engine.Runtime, a engine.Atom) (*atom, error) {
	data, typ, ok := rt.BlobData(a)
	if !ok {
		return nil, fmt.Errorf("invalid atom %d", a)
	}
	if typ == engine.TextBlobType() {
		return &atom{Name: string(data)}, nil
	}
	saved, err := typ.Save(data)
	if err != nil {
		return nil, fmt.Errorf("save %s blob: %w", typ.Name(), err)
	}
	return &atom{Type: typ.Name(), Data: saved}, nil
}

// Unmarshal decodes data into a new record of rt. Blob types must be
// registered in rt beforehand.
func Unmarshal(rt *engine.Runtime, data []byte) (*engine.Record, error) {
	var in record
	if err := cborDecMode.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("wire: unmarshal record: %w", err)
	}
	if in.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, in.Version)
	}

	// Atoms interned while decoding are held until NewRecord has taken its
	// own references.
	var held []engine.Atom
	defer func() {
		for _, a := range held {
			rt.UnregisterAtom(a)
		}
	}()

	cells := make([]engine.Cell, len(in.Cells))
	for i, wc := range in.Cells {
		c := engine.Cell{Kind: engine.CellKind(wc.Kind)}
		switch c.Kind {
		case engine.CellVar, engine.CellAttVar, engine.CellInt:
			c.Int = wc.Int
		case engine.CellFloat:
			c.Float = math.Float64frombits(wc.Float)
		case engine.CellString:
			c.Text = wc.Text
		case engine.CellBigInt:
			n, ok := new(big.Int).SetString(wc.Text, 10)
			if !ok {
				return nil, fmt.Errorf("wire: cell %d: bad integer %q", i, wc.Text)
			}
			c.Big = n
		case engine.CellAtom, engine.CellCompound:
			if wc.Atom == nil {
				return nil, fmt.Errorf("wire: cell %d: missing atom", i)
			}
			a, err := decodeAtom(rt, wc.Atom)
			if err != nil {
				return nil, fmt.Errorf("wire: cell %d: %w", i, err)
			}
			held = append(held, a)
			if c.Kind == engine.CellAtom {
				c.Atom = a
			} else {
				if wc.Arity <= 0 {
					return nil, fmt.Errorf("wire: cell %d: compound with arity %d", i, wc.Arity)
				}
				c.Functor = rt.NewFunctor(a, wc.Arity)
			}
		}
		cells[i] = c
	}

	r, err := rt.NewRecord(cells)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	if r.Vars() != in.Vars {
		rt.Erase(r)
		return nil, fmt.Errorf("wire: record declares %d variables, cells hold %d", in.Vars, r.Vars())
	}
	return r, nil
}

func decodeAtom(rt *engine.Runtime, a *atom) (engine.Atom, error) {
	if a.Type == "" {
		return rt.NewAtom(a.Name), nil
	}
	typ, ok := rt.BlobTypeByName(a.Type)
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownBlobType, a.Type)
	}
	data, err := typ.Load(a.Data)
	if err != nil {
		return 0, fmt.Errorf("load %s blob: %w", a.Type, err)
	}
	blob, _ := rt.NewBlob(data, typ)
	return blob, nil
}
