package semispace

import (
	"io"
	"time"

	"github.com/tinygc/semispace/internal/sysmem"
	"github.com/tinygc/semispace/largeobject"
)

// Heap owns the two spaces and the kind table. An embedder creates one heap
// per managed runtime and keeps it for the runtime's lifetime; nothing frees
// it implicitly.
type Heap struct {
	semi  space
	large *largeobject.Space
	kinds []KindInfo

	trace io.Writer // one summary line per collection, nil for none
	audit bool      // verify the reachable set around every collection

	copied     uint64 // objects copied during the current cycle
	mallocs    uint64
	totalAlloc uint64
	freed      uint64 // objects found dead over all collections
	liveLast   uint64 // objects surviving the last collection
	mallocsAt  uint64 // mallocs when the last collection finished
	pauseTotal time.Duration
	lastGC     time.Time

	auditSums []uint16

	// visitSlot bound once so tracing does not allocate per slot.
	visitor Visitor
}

// Mutator is the single execution context of a heap. Only Initialize creates
// one; the collector assumes there is no second thread to race with, so the
// type refuses to be copied and must not be shared across goroutines.
type Mutator struct {
	noCopy noCopy
	heap   *Heap
	roots  *Handle
}

// Heap returns the heap this mutator allocates into.
func (m *Mutator) Heap() *Heap {
	return m.heap
}

// noCopy triggers vet's copylocks check on types that embed it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Initialize creates a heap with the given configuration and returns it with
// its one mutator. The heap size must be a power of two no smaller than two
// OS pages, so the half boundary is page-aligned and the mirror arithmetic
// of the page-budget protocol reduces to a mask. Configuration and
// reservation problems come back as errors; once the heap is live, failures
// are fatal (see HeapError).
func Initialize(cfg Config) (*Heap, *Mutator, error) {
	size, err := cfg.heapSize()
	if err != nil {
		return nil, nil, err
	}
	h := &Heap{
		trace: cfg.Trace,
		audit: cfg.Audit,
		large: largeobject.New(),
	}
	if err := initSpace(&h.semi, size); err != nil {
		return nil, nil, err
	}
	h.visitor = h.visitSlot
	return h, &Mutator{heap: h}, nil
}

// Release unmaps everything the heap owns. It exists for embedders that tear
// the runtime down, and for tests; the collector itself never unmaps the
// heap. The heap and its mutator must not be used afterwards.
func (h *Heap) Release() {
	_ = sysmem.Free(h.semi.mapping)
	h.semi.mapping = nil
	h.large.Release()
}
