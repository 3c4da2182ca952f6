package semispace

// Handle is a root slot: a reference cell the collector can always find and
// will rewrite when the object it names moves. Handles live in ordinary Go
// memory, not in the managed heap, and are threaded on a LIFO chain per
// mutator. The usual pattern brackets a scope:
//
//	var tmp Handle
//	m.PushRoot(&tmp)
//	defer m.PopRoot()
//	tmp.Set(m.Allocate(kindNode, nodeSize))
type Handle struct {
	ref  Ref
	next *Handle
}

// Get returns the reference currently held by the handle.
func (h *Handle) Get() Ref {
	return h.ref
}

// Set stores a reference into the handle.
func (h *Handle) Set(r Ref) {
	h.ref = r
}

// PushRoot registers h as a live root. A handle must not be pushed again
// before it is popped.
func (m *Mutator) PushRoot(h *Handle) {
	h.next = m.roots
	m.roots = h
}

// PopRoot unregisters the most recently pushed root. Pushes and pops must
// nest; popping an empty chain is a bug in the embedder.
func (m *Mutator) PopRoot() {
	m.roots = m.roots.next
}
