package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Runtime: process-wide context
// ---------------------------------------------------------------------------

// Options configure a Runtime and the engines attached to it. Sizes are in
// cells (words for the global and local stacks, entries for the trail).
type Options struct {
	GlobalSize int
	LocalSize  int
	TrailSize  int

	GlobalLimit int
	LocalLimit  int
	TrailLimit  int

	// Spare is the emergency margin per stack, usable only while a
	// resource error is being raised.
	Spare int

	// ValidateAPI enables handle validity checks on every call.
	ValidateAPI bool
	// BoundedIntegers rejects integers that need more than 64 bits with a
	// representation error instead of boxing them as multi-precision.
	BoundedIntegers bool

	// Collector is asked to reclaim space before a stack grows. Nil grows
	// without collecting.
	Collector Collector
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		GlobalSize:  16 * 1024,
		LocalSize:   4 * 1024,
		TrailSize:   4 * 1024,
		GlobalLimit: 32 * 1024 * 1024,
		LocalLimit:  8 * 1024 * 1024,
		TrailLimit:  8 * 1024 * 1024,
		Spare:       1024,
		ValidateAPI: true,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.GlobalSize <= 0 {
		o.GlobalSize = d.GlobalSize
	}
	if o.LocalSize <= 0 {
		o.LocalSize = d.LocalSize
	}
	if o.TrailSize <= 0 {
		o.TrailSize = d.TrailSize
	}
	if o.GlobalLimit <= 0 {
		o.GlobalLimit = d.GlobalLimit
	}
	if o.LocalLimit <= 0 {
		o.LocalLimit = d.LocalLimit
	}
	if o.TrailLimit <= 0 {
		o.TrailLimit = d.TrailLimit
	}
	if o.Spare < 0 {
		o.Spare = 0
	}
	o.GlobalSize = min(o.GlobalSize, o.GlobalLimit)
	o.LocalSize = min(o.LocalSize, o.LocalLimit)
	o.TrailSize = min(o.TrailSize, o.TrailLimit)
}

// Runtime holds the tables shared by all engines: atoms, functors, modules,
// blob types and the engine registry. Each table has its own lock.
type Runtime struct {
	opts Options

	atoms    *AtomTable
	functors *FunctorTable

	modMu   sync.RWMutex
	modules map[Atom]*Module

	blobMu    sync.RWMutex
	blobTypes map[string]BlobType

	engMu      sync.Mutex
	engines    map[int]*Engine
	nextEngine int

	recMu   sync.Mutex
	records map[*Record]struct{}

	agcMu sync.Mutex

	sigMu    sync.RWMutex
	handlers map[Signal]SignalHandler

	// OnForeignRegistered is called after a foreign predicate is bound.
	OnForeignRegistered func(p *Predicate)

	closed bool
}

// New creates a runtime. The zero Options select DefaultOptions.
func New(opts Options) *Runtime {
	opts.normalize()
	rt := &Runtime{
		opts:      opts,
		atoms:     NewAtomTable(),
		functors:  NewFunctorTable(),
		modules:   make(map[Atom]*Module),
		blobTypes: make(map[string]BlobType),
		engines:   make(map[int]*Engine),
		records:   make(map[*Record]struct{}),
		handlers:  make(map[Signal]SignalHandler),
	}
	rt.blobTypes[textBlobType.Name()] = textBlobType
	rt.Module("user")
	rt.Module("system")
	return rt
}

// Options returns the options the runtime was created with.
func (rt *Runtime) Options() Options { return rt.opts }

// Atoms exposes the atom table.
func (rt *Runtime) Atoms() *AtomTable { return rt.atoms }

// ---------------------------------------------------------------------------
// Atom API
// ---------------------------------------------------------------------------

// NewAtom interns name. The caller holds one reference.
func (rt *Runtime) NewAtom(name string) Atom { return rt.atoms.Intern(name) }

// AtomText returns the name of a text atom.
func (rt *Runtime) AtomText(a Atom) (string, bool) { return rt.atoms.Text(a) }

// AtomName returns the name of a text atom or "" for blobs.
func (rt *Runtime) AtomName(a Atom) string { return rt.atoms.Name(a) }

// RegisterAtom adds a reference to a.
func (rt *Runtime) RegisterAtom(a Atom) { rt.atoms.Register(a) }

// UnregisterAtom drops a reference to a.
func (rt *Runtime) UnregisterAtom(a Atom) { rt.atoms.Unregister(a) }

// ---------------------------------------------------------------------------
// Engines
// ---------------------------------------------------------------------------

// Attach creates an engine for the calling goroutine. The engine owns its
// stacks; it must only be used by one goroutine at a time.
func (rt *Runtime) Attach() (*Engine, error) {
	rt.engMu.Lock()
	if rt.closed {
		rt.engMu.Unlock()
		return nil, fmt.Errorf("attach: runtime is shut down")
	}
	rt.nextEngine++
	id := rt.nextEngine
	rt.engMu.Unlock()

	e := newEngine(rt, id, "eng_"+uuid.New().String())

	rt.engMu.Lock()
	rt.engines[id] = e
	rt.engMu.Unlock()

	log.Debugf("attached engine %d (%s)", id, e.uuid)
	return e, nil
}

// Engine returns the attached engine with the given id.
func (rt *Runtime) Engine(id int) (*Engine, bool) {
	rt.engMu.Lock()
	defer rt.engMu.Unlock()
	e, ok := rt.engines[id]
	return e, ok
}

// Engines returns the ids of all attached engines.
func (rt *Runtime) Engines() []int {
	rt.engMu.Lock()
	defer rt.engMu.Unlock()
	ids := make([]int, 0, len(rt.engines))
	for id := range rt.engines {
		ids = append(ids, id)
	}
	return ids
}

func (rt *Runtime) detach(e *Engine) {
	rt.engMu.Lock()
	delete(rt.engines, e.id)
	rt.engMu.Unlock()
	log.Debugf("detached engine %d", e.id)
}

// Shutdown detaches all engines and releases every blob.
func (rt *Runtime) Shutdown() {
	rt.engMu.Lock()
	rt.closed = true
	engines := make([]*Engine, 0, len(rt.engines))
	for _, e := range rt.engines {
		engines = append(engines, e)
	}
	rt.engMu.Unlock()

	for _, e := range engines {
		e.Detach()
	}
	rt.releaseAllBlobs()
}
