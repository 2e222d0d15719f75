package engine

import (
	"sync"
	"sync/atomic"
	"unicode/utf8"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Atom: interned names and blobs
// ---------------------------------------------------------------------------

// Atom is a handle into the runtime's atom table. The zero Atom is invalid.
type Atom uint32

// Builtin atoms. They are interned in this order by every Runtime and are
// never collected.
const (
	AtomNone Atom = iota
	AtomNil
	AtomDot
	AtomTrue
	AtomFalse
	AtomDict
	AtomError
	AtomAbort
	AtomUnwind
	AtomHalt
	AtomThreadExit
	AtomTimeLimitExceeded
	AtomTermTFree
	AtomFliFrame
	AtomGlobal
	AtomStack
	AtomGlobalStack
	AtomLocalStack
	AtomTrailStack
	AtomUser
	AtomSystem
	AtomInstantiationError
	AtomUninstantiationError
	AtomTypeError
	AtomDomainError
	AtomRepresentationError
	AtomResourceError
	AtomExistenceError
	AtomPermissionError
	AtomEvaluationError
	AtomContext
	AtomStackOverflow
	AtomInteger
	AtomFloat
	AtomAtom
	AtomString
	AtomText
	AtomList
	AtomCompound
	AtomCallable
	AtomBool
	AtomCharacter
	AtomCharacterCode
	AtomMaxInteger
	AtomMinInteger
	AtomEncoding
	AtomDictKey
	AtomProcedure
	AtomColon
	AtomEmptyAtom
	AtomCurly
	AtomMinus
	AtomZeroDivisor
	AtomNotLessThanZero
	AtomMemory
	AtomInt64
	AtomInt
	AtomUint64
	AtomCodes
	AtomChars
	AtomDictTag
	AtomCyclicTerm
	AtomAtomic
	AtomOn
	AtomOff
	builtinAtomCount
)

var builtinAtomNames = [builtinAtomCount]string{
	AtomNone:                 "",
	AtomNil:                  "[]",
	AtomDot:                  "[|]",
	AtomTrue:                 "true",
	AtomFalse:                "false",
	AtomDict:                 "dict",
	AtomError:                "error",
	AtomAbort:                "abort",
	AtomUnwind:               "unwind",
	AtomHalt:                 "halt",
	AtomThreadExit:           "thread_exit",
	AtomTimeLimitExceeded:    "time_limit_exceeded",
	AtomTermTFree:            "$term_t_free",
	AtomFliFrame:             "$fli_frame",
	AtomGlobal:               "global",
	AtomStack:                "stack",
	AtomGlobalStack:          "global_stack",
	AtomLocalStack:           "local_stack",
	AtomTrailStack:           "trail_stack",
	AtomUser:                 "user",
	AtomSystem:               "system",
	AtomInstantiationError:   "instantiation_error",
	AtomUninstantiationError: "uninstantiation_error",
	AtomTypeError:            "type_error",
	AtomDomainError:          "domain_error",
	AtomRepresentationError:  "representation_error",
	AtomResourceError:        "resource_error",
	AtomExistenceError:       "existence_error",
	AtomPermissionError:      "permission_error",
	AtomEvaluationError:      "evaluation_error",
	AtomContext:              "context",
	AtomStackOverflow:        "stack_overflow",
	AtomInteger:              "integer",
	AtomFloat:                "float",
	AtomAtom:                 "atom",
	AtomString:               "string",
	AtomText:                 "text",
	AtomList:                 "list",
	AtomCompound:             "compound",
	AtomCallable:             "callable",
	AtomBool:                 "bool",
	AtomCharacter:            "character",
	AtomCharacterCode:        "character_code",
	AtomMaxInteger:           "max_integer",
	AtomMinInteger:           "min_integer",
	AtomEncoding:             "encoding",
	AtomDictKey:              "dict_key",
	AtomProcedure:            "procedure",
	AtomColon:                ":",
	AtomEmptyAtom:            "$empty",
	AtomCurly:                "{}",
	AtomMinus:                "-",
	AtomZeroDivisor:          "zero_divisor",
	AtomNotLessThanZero:      "not_less_than_zero",
	AtomMemory:               "memory",
	AtomInt64:                "int64_t",
	AtomInt:                  "int",
	AtomUint64:               "uint64_t",
	AtomCodes:                "codes",
	AtomChars:                "chars",
	AtomDictTag:              "dict_tag",
	AtomCyclicTerm:           "cyclic_term",
	AtomAtomic:               "atomic",
	AtomOn:                   "on",
	AtomOff:                  "off",
}

type atomEntry struct {
	text     string   // name of text atoms
	data     []byte   // payload of non-text blobs; nil once freed
	typ      BlobType // text atoms use textBlobType
	refs     int
	builtin  bool
	valid    bool
	freeing  bool
	released bool // the release callback has run
}

// blobKey identifies unique blobs. NoCopy blobs are identified by the
// address of their payload, other blobs by content.
type blobKey struct {
	typ     BlobType
	content string
	addr    uintptr
}

// AtomTable interns atoms and blobs. It is shared by all engines of a
// runtime and guarded by a single mutex held only for lookup/insert/delete.
type AtomTable struct {
	mu      sync.RWMutex
	entries []atomEntry
	byText  map[string]Atom
	byBlob  map[blobKey]Atom
	free    []Atom

	guards atomic.Int32
}

// NewAtomTable creates a table holding the builtin atoms.
func NewAtomTable() *AtomTable {
	at := &AtomTable{
		entries: make([]atomEntry, 0, 1024),
		byText:  make(map[string]Atom, 1024),
		byBlob:  make(map[blobKey]Atom),
	}
	for i, name := range builtinAtomNames {
		at.entries = append(at.entries, atomEntry{
			text:    name,
			typ:     textBlobType,
			builtin: true,
			valid:   i != int(AtomNone),
		})
		if i != int(AtomNone) {
			at.byText[name] = Atom(i)
		}
	}
	return at
}

func (at *AtomTable) insert(e atomEntry) Atom {
	e.valid = true
	if n := len(at.free); n > 0 {
		a := at.free[n-1]
		at.free = at.free[:n-1]
		at.entries[a] = e
		return a
	}
	at.entries = append(at.entries, e)
	return Atom(len(at.entries) - 1)
}

// Intern returns the atom for name with one reference held by the caller.
func (at *AtomTable) Intern(name string) Atom {
	at.mu.Lock()
	defer at.mu.Unlock()

	if a, ok := at.byText[name]; ok {
		at.entries[a].refs++
		return a
	}
	a := at.insert(atomEntry{text: name, typ: textBlobType, refs: 1})
	at.byText[name] = a
	return a
}

// Lookup returns the atom for name if it is already interned.
func (at *AtomTable) Lookup(name string) (Atom, bool) {
	at.mu.RLock()
	defer at.mu.RUnlock()
	a, ok := at.byText[name]
	return a, ok
}

// Blob interns a blob of the given type. It reports whether a new atom was
// created. Without BlobUnique every call creates a new atom.
func (at *AtomTable) Blob(data []byte, typ BlobType) (Atom, bool) {
	flags := typ.Flags()
	if flags&BlobNoCopy == 0 {
		data = append([]byte(nil), data...)
	}

	at.mu.Lock()
	defer at.mu.Unlock()

	var key blobKey
	if flags&BlobUnique != 0 {
		key.typ = typ
		if flags&BlobNoCopy != 0 {
			key.addr = addrOf(data)
		} else {
			key.content = string(data)
		}
		if a, ok := at.byBlob[key]; ok {
			at.entries[a].refs++
			return a, false
		}
	}
	a := at.insert(atomEntry{data: data, typ: typ, refs: 1})
	if flags&BlobUnique != 0 {
		at.byBlob[key] = a
	}
	return a, true
}

// Register adds a reference to a.
func (at *AtomTable) Register(a Atom) {
	at.mu.Lock()
	if at.validLocked(a) {
		at.entries[a].refs++
	}
	at.mu.Unlock()
}

// Unregister drops a reference to a. The atom stays in the table until the
// next atom garbage collection finds it unreferenced.
func (at *AtomTable) Unregister(a Atom) {
	at.mu.Lock()
	if at.validLocked(a) && at.entries[a].refs > 0 {
		at.entries[a].refs--
	}
	at.mu.Unlock()
}

func (at *AtomTable) validLocked(a Atom) bool {
	return int(a) < len(at.entries) && at.entries[a].valid
}

// Valid reports whether a refers to a live atom.
func (at *AtomTable) Valid(a Atom) bool {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.validLocked(a)
}

// Text returns the name of a text atom.
func (at *AtomTable) Text(a Atom) (string, bool) {
	at.mu.RLock()
	defer at.mu.RUnlock()
	if !at.validLocked(a) || at.entries[a].typ != textBlobType {
		return "", false
	}
	return at.entries[a].text, true
}

// Name returns the name of a text atom, or "" for blobs and invalid atoms.
func (at *AtomTable) Name(a Atom) string {
	s, _ := at.Text(a)
	return s
}

// IsText reports whether a is a text atom.
func (at *AtomTable) IsText(a Atom) bool {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.validLocked(a) && at.entries[a].typ == textBlobType
}

// IsWide reports whether the name of a text atom needs more than Latin-1.
func (at *AtomTable) IsWide(a Atom) bool {
	s, ok := at.Text(a)
	if !ok {
		return false
	}
	for _, r := range s {
		if r > 0xff {
			return true
		}
	}
	return false
}

// Data returns the payload and type of a blob. Text atoms return their
// UTF-8 name.
func (at *AtomTable) Data(a Atom) ([]byte, BlobType, bool) {
	at.mu.RLock()
	defer at.mu.RUnlock()
	if !at.validLocked(a) {
		return nil, nil, false
	}
	e := &at.entries[a]
	if e.typ == textBlobType {
		return []byte(e.text), e.typ, true
	}
	return e.data, e.typ, true
}

// Refs returns the reference count of a.
func (at *AtomTable) Refs(a Atom) int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	if !at.validLocked(a) {
		return 0
	}
	return at.entries[a].refs
}

// Len returns the number of live atoms.
func (at *AtomTable) Len() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return len(at.entries) - len(at.free) - 1
}

// Guard blocks atom garbage collection until the returned function is
// called. Code holding raw atom payloads across allocations takes a guard.
func (at *AtomTable) Guard() func() {
	at.guards.Add(1)
	var once sync.Once
	return func() { once.Do(func() { at.guards.Add(-1) }) }
}

func addrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(unsafe.SliceData(b))) }

// textLen returns the number of characters of a text atom.
func textLen(s string) int { return utf8.RuneCountInString(s) }
