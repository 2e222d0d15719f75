package engine

// ---------------------------------------------------------------------------
// Atom garbage collection
// ---------------------------------------------------------------------------
//
// An atom is collected when nothing references it: its reference count is
// zero, no engine stack reaches it and no functor is named by it. Builtin
// atoms are never collected. Marking reads the stacks of every attached
// engine, so other engines must be quiescent while it runs; the engine
// that triggers it through SigGC is safe by construction.

// GarbageCollectAtoms reclaims unreferenced atoms and blobs and returns how
// many were collected. It does nothing while a Guard is held.
func (rt *Runtime) GarbageCollectAtoms() int {
	at := rt.atoms
	if at.guards.Load() > 0 {
		log.Debugf("atom gc skipped: table is guarded")
		return 0
	}
	rt.agcMu.Lock()
	defer rt.agcMu.Unlock()

	marked := make(map[Atom]struct{})
	mark := func(a Atom) { marked[a] = struct{}{} }

	rt.engMu.Lock()
	for _, e := range rt.engines {
		if !e.detached {
			e.markAtoms(mark)
		}
	}
	rt.engMu.Unlock()
	rt.functors.each(mark)

	type victim struct {
		a    Atom
		typ  BlobType
		data []byte
		call bool
	}
	var victims []victim

	at.mu.Lock()
	total := len(at.entries) - len(at.free) - 1
	for i := int(builtinAtomCount); i < len(at.entries); i++ {
		a := Atom(i)
		ent := &at.entries[a]
		if !ent.valid || ent.builtin || ent.refs > 0 || ent.freeing {
			continue
		}
		if _, ok := marked[a]; ok {
			continue
		}
		if ent.typ == textBlobType {
			delete(at.byText, ent.text)
		} else if flags := ent.typ.Flags(); flags&BlobUnique != 0 {
			key := blobKey{typ: ent.typ}
			if flags&BlobNoCopy != 0 {
				key.addr = addrOf(ent.data)
			} else {
				key.content = string(ent.data)
			}
			if at.byBlob[key] == a {
				delete(at.byBlob, key)
			}
		}
		victims = append(victims, victim{
			a:    a,
			typ:  ent.typ,
			data: ent.data,
			call: ent.typ != textBlobType && !ent.released,
		})
		ent.valid = false
	}
	at.mu.Unlock()

	// release callbacks run without the table lock
	for _, v := range victims {
		if v.call {
			v.typ.Release(v.a, v.data)
		}
	}

	at.mu.Lock()
	for _, v := range victims {
		at.entries[v.a] = atomEntry{}
		at.free = append(at.free, v.a)
	}
	at.mu.Unlock()

	if len(victims) > 0 {
		log.Infof("atom gc: collected %d of %d atoms", len(victims), total)
	} else {
		log.Debugf("atom gc: nothing to collect among %d atoms", total)
	}
	return len(victims)
}

// markAtoms calls mark for every atom reachable from the local stack, the
// trail and the wakeup queue of e.
func (e *Engine) markAtoms(mark func(Atom)) {
	seen := make(map[int]struct{})
	work := make([]Word, 0, e.local.top)
	work = append(work, e.local.w[:e.local.top]...)
	for _, te := range e.trail.e[:e.trail.top] {
		if te.value {
			work = append(work, te.old)
		}
	}
	for _, wk := range e.wakeups {
		work = append(work, makeRef(wk.attrs), wk.value)
	}

	for len(work) > 0 {
		w := work[len(work)-1]
		work = work[:len(work)-1]
		switch {
		case w.isAtom():
			mark(w.atom())
		case w.isRef(), w.isAttVar():
			p := w.target()
			if p.local() {
				continue
			}
			if _, ok := seen[p.index()]; ok {
				continue
			}
			seen[p.index()] = struct{}{}
			work = append(work, e.global.w[p.index()])
		case w.isCompound():
			fi := w.target().index()
			if _, ok := seen[fi]; ok {
				continue
			}
			seen[fi] = struct{}{}
			arity := e.rt.FunctorArity(e.global.w[fi].functor())
			work = append(work, e.global.w[fi+1:fi+1+arity]...)
		}
	}
}

// releaseAllBlobs runs the release callback of every blob that still holds
// its payload. Used at shutdown.
func (rt *Runtime) releaseAllBlobs() {
	at := rt.atoms
	type pending struct {
		a    Atom
		typ  BlobType
		data []byte
	}
	var todo []pending
	at.mu.Lock()
	for i := range at.entries {
		ent := &at.entries[i]
		if !ent.valid || ent.typ == textBlobType || ent.released || ent.freeing {
			continue
		}
		ent.released = true
		todo = append(todo, pending{Atom(i), ent.typ, ent.data})
		ent.data = nil
	}
	at.mu.Unlock()

	for _, p := range todo {
		p.typ.Release(p.a, p.data)
	}
	if len(todo) > 0 {
		log.Debugf("released %d blobs at shutdown", len(todo))
	}
}
