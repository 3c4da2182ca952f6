package semispace

import (
	"testing"
	"unsafe"
)

// Test object layouts. testPair links the graph together, testLeaf is a
// fixed-size object without references, and testBlob is variable-length so
// tests can fill the tospace to an exact byte count.

type testPair struct {
	header Header
	a, b   Ref
	id     uintptr
}

type testLeaf struct {
	header Header
	value  uintptr
}

type testBlob struct {
	header Header
	size   uintptr
	// size-16 payload bytes follow.
}

const (
	pairSize    = unsafe.Sizeof(testPair{})
	leafSize    = unsafe.Sizeof(testLeaf{})
	blobMinSize = unsafe.Sizeof(testBlob{})
)

type testKinds struct {
	pair, leaf, blob Kind
}

func registerTestKinds(h *Heap) testKinds {
	return testKinds{
		pair: h.RegisterKind(KindInfo{
			Name: "pair",
			Size: func(Ref) uintptr { return pairSize },
			Visit: func(obj Ref, v Visitor) {
				p := (*testPair)(obj.Pointer())
				v(&p.a)
				v(&p.b)
			},
		}),
		leaf: h.RegisterKind(KindInfo{
			Name: "leaf",
			Size: func(Ref) uintptr { return leafSize },
		}),
		blob: h.RegisterKind(KindInfo{
			Name: "blob",
			Size: func(obj Ref) uintptr {
				return (*testBlob)(obj.Pointer()).size
			},
		}),
	}
}

func pairAt(r Ref) *testPair {
	return (*testPair)(r.Pointer())
}

func leafAt(r Ref) *testLeaf {
	return (*testLeaf)(r.Pointer())
}

func newTestHeap(t *testing.T, size uintptr) (*Heap, *Mutator, testKinds) {
	t.Helper()
	h, m, err := Initialize(Config{HeapSize: ByteSize(size)})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(h.Release)
	return h, m, registerTestKinds(h)
}

func allocPair(m *Mutator, tk testKinds, id uintptr) Ref {
	r := m.Allocate(tk.pair, pairSize)
	pairAt(r).id = id
	return r
}

func allocLeaf(m *Mutator, tk testKinds, value uintptr) Ref {
	r := m.Allocate(tk.leaf, leafSize)
	leafAt(r).value = value
	return r
}

// allocBlob allocates a blob of exactly size bytes. The size field must be
// written before anything else can allocate, since the kind's Size callback
// reads it.
func allocBlob(m *Mutator, tk testKinds, size uintptr) Ref {
	r := m.Allocate(tk.blob, size)
	(*testBlob)(r.Pointer()).size = size
	return r
}

// wantFatal runs fn and checks that it panics with a HeapError of the given
// reason.
func wantFatal(t *testing.T, reason Reason, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		switch err := recover().(type) {
		case nil:
			t.Fatalf("no panic, want a fatal %v", reason)
		case *HeapError:
			if err.Reason != reason {
				t.Fatalf("fatal reason = %v, want %v", err.Reason, reason)
			}
		default:
			t.Fatalf("panic value %v, want *HeapError", err)
		}
	}()
	fn()
}

// fillLive allocates rooted pair+blob links until less than step bytes are
// free, without ever triggering a collection. The handle chain keeps all of
// it alive. Returns the handle holding the list head.
func fillLive(t *testing.T, m *Mutator, tk testKinds, step uintptr) *Handle {
	t.Helper()
	if step < pairSize+blobMinSize {
		t.Fatalf("fill step %d too small", step)
	}
	head := new(Handle)
	m.PushRoot(head)
	gen := m.heap.semi.count
	for m.heap.semi.free() >= step {
		link := allocPair(m, tk, 0)
		pairAt(link).a = head.Get()
		head.Set(link)
		blob := allocBlob(m, tk, step-pairSize)
		pairAt(head.Get()).b = blob
	}
	if m.heap.semi.count != gen {
		t.Fatalf("fill triggered a collection")
	}
	return head
}
