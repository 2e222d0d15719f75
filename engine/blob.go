package engine

import (
	"bytes"
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Blobs: atoms carrying a native payload
// ---------------------------------------------------------------------------

// BlobFlags describe how a blob type stores and identifies its payload.
type BlobFlags uint

const (
	// BlobUnique makes blobs with the same content (or, with BlobNoCopy,
	// the same payload address) share one atom.
	BlobUnique BlobFlags = 1 << iota
	// BlobText marks payloads that are text.
	BlobText
	// BlobWide marks text payloads that need more than Latin-1.
	BlobWide
	// BlobNoCopy stores the caller's slice as is. Such blobs can be freed
	// explicitly with FreeBlob.
	BlobNoCopy
)

// BlobType is the descriptor of a blob kind. Implementations must be
// comparable (pointer types) since the type is part of the blob's identity.
type BlobType interface {
	// Name identifies the type; it is used by the record wire format to find
	// the type again when loading.
	Name() string
	Flags() BlobFlags

	// Release is called when the atom is collected or freed. Returning false
	// vetoes FreeBlob.
	Release(a Atom, data []byte) bool
	// Compare orders two payloads of this type.
	Compare(a, b []byte) int
	// Write renders the blob as text.
	Write(w io.Writer, a Atom, data []byte) error
	// Save and Load serialize the payload for records.
	Save(data []byte) ([]byte, error)
	Load(saved []byte) ([]byte, error)
}

// BlobTypeBase implements BlobType with default callbacks. Embed it and
// override what the blob kind needs.
type BlobTypeBase struct {
	TypeName  string
	TypeFlags BlobFlags
}

func (b *BlobTypeBase) Name() string     { return b.TypeName }
func (b *BlobTypeBase) Flags() BlobFlags { return b.TypeFlags }

func (b *BlobTypeBase) Release(Atom, []byte) bool { return true }

func (b *BlobTypeBase) Compare(x, y []byte) int { return bytes.Compare(x, y) }

func (b *BlobTypeBase) Write(w io.Writer, a Atom, data []byte) error {
	_, err := fmt.Fprintf(w, "<%s>(%d,%d)", b.TypeName, a, len(data))
	return err
}

func (b *BlobTypeBase) Save(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (b *BlobTypeBase) Load(saved []byte) ([]byte, error) {
	return append([]byte(nil), saved...), nil
}

// textBlobType is the type of ordinary text atoms.
var textBlobType BlobType = &BlobTypeBase{TypeName: "text", TypeFlags: BlobUnique | BlobText}

// TextBlobType returns the type shared by all text atoms.
func TextBlobType() BlobType { return textBlobType }

// ---------------------------------------------------------------------------
// Runtime blob API
// ---------------------------------------------------------------------------

// RegisterBlobType makes typ findable by name, which record loading needs.
// The first type registered under a name keeps it: registering another
// type with that name logs a warning and returns false.
func (rt *Runtime) RegisterBlobType(typ BlobType) bool {
	name := typ.Name()
	rt.blobMu.RLock()
	known, ok := rt.blobTypes[name]
	rt.blobMu.RUnlock()
	if !ok {
		rt.blobMu.Lock()
		known, ok = rt.blobTypes[name]
		if !ok {
			rt.blobTypes[name] = typ
			known = typ
		}
		rt.blobMu.Unlock()
	}
	if known != typ {
		log.Warningf("blob type %q is already registered by %T; keeping it", name, known)
		return false
	}
	return true
}

// BlobTypeByName returns a registered blob type.
func (rt *Runtime) BlobTypeByName(name string) (BlobType, bool) {
	rt.blobMu.RLock()
	defer rt.blobMu.RUnlock()
	t, ok := rt.blobTypes[name]
	return t, ok
}

// NewBlob returns the atom for a blob, with one reference held by the
// caller, and whether it was newly created.
func (rt *Runtime) NewBlob(data []byte, typ BlobType) (Atom, bool) {
	if typ == textBlobType {
		return rt.atoms.Intern(string(data)), false
	}
	rt.RegisterBlobType(typ)
	return rt.atoms.Blob(data, typ)
}

// BlobData returns the payload and type of a. After FreeBlob the payload is
// nil with length 0.
func (rt *Runtime) BlobData(a Atom) ([]byte, BlobType, bool) {
	return rt.atoms.Data(a)
}

// FreeBlob releases the payload of a BlobNoCopy blob. The release callback
// runs at most once; a second call returns false. The atom itself stays
// valid until atom garbage collection.
func (rt *Runtime) FreeBlob(a Atom) bool {
	at := rt.atoms
	at.mu.Lock()
	if !at.validLocked(a) {
		at.mu.Unlock()
		return false
	}
	e := &at.entries[a]
	typ, data := e.typ, e.data
	if typ.Flags()&BlobNoCopy == 0 || e.released || e.freeing {
		at.mu.Unlock()
		return false
	}
	e.freeing = true
	at.mu.Unlock()

	// the callback runs without the table lock
	ok := typ.Release(a, data)

	at.mu.Lock()
	defer at.mu.Unlock()
	e = &at.entries[a]
	e.freeing = false
	if !ok {
		return false
	}
	if typ.Flags()&BlobUnique != 0 {
		delete(at.byBlob, blobKey{typ: typ, addr: addrOf(data)})
	}
	e.data = nil
	e.released = true
	return true
}
