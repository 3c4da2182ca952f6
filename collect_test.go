package semispace

import (
	"bytes"
	"strings"
	"testing"
)

func TestCollectPreservesChainWithCycle(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)

	// head -> second -> third, plus a back edge third.a -> head.
	var head Handle
	m.PushRoot(&head)
	head.Set(allocPair(m, tk, 1))
	var tmp Handle
	m.PushRoot(&tmp)
	tmp.Set(allocPair(m, tk, 2))
	pairAt(head.Get()).a = tmp.Get()
	tmp.Set(allocPair(m, tk, 3))
	second := pairAt(head.Get()).a
	pairAt(second).a = tmp.Get()
	pairAt(tmp.Get()).a = head.Get()
	m.PopRoot()

	for i := 0; i < 3; i++ {
		m.GC()
		first := pairAt(head.Get())
		second := pairAt(first.a)
		third := pairAt(second.a)
		if first.id != 1 || second.id != 2 || third.id != 3 {
			t.Fatalf("gc %d: ids = %d,%d,%d, want 1,2,3", i+1, first.id, second.id, third.id)
		}
		if third.a != head.Get() {
			t.Fatalf("gc %d: back edge %#x, want %#x", i+1, uintptr(third.a), uintptr(head.Get()))
		}
	}
}

func TestCollectDropsUnreachable(t *testing.T) {
	h, m, tk := newTestHeap(t, 1<<20)

	var keep Handle
	m.PushRoot(&keep)
	keep.Set(allocPair(m, tk, 1))
	for i := 0; i < 100; i++ {
		allocPair(m, tk, uintptr(100+i))
	}
	m.GC()

	used := h.semi.hp - h.semi.tospaceStart()
	if want := alignUp(pairSize, Alignment); used != want {
		t.Errorf("tospace holds %d bytes after collection, want %d (one pair)", used, want)
	}
	if h.liveLast != 1 {
		t.Errorf("survivors = %d, want 1", h.liveLast)
	}
}

func TestCollectForwardsSharedObjectOnce(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)

	// Diamond: root.a and root.b both reach the same leaf through
	// distinct pairs.
	var root Handle
	m.PushRoot(&root)
	root.Set(allocPair(m, tk, 1))
	var tmp Handle
	m.PushRoot(&tmp)
	tmp.Set(allocPair(m, tk, 2))
	pairAt(root.Get()).a = tmp.Get()
	tmp.Set(allocPair(m, tk, 3))
	pairAt(root.Get()).b = tmp.Get()
	tmp.Set(allocLeaf(m, tk, 42))
	r := pairAt(root.Get())
	pairAt(r.a).a = tmp.Get()
	pairAt(r.b).a = tmp.Get()
	m.PopRoot()

	m.GC()

	r = pairAt(root.Get())
	left, right := pairAt(r.a), pairAt(r.b)
	if left.a != right.a {
		t.Fatalf("shared leaf split into %#x and %#x", uintptr(left.a), uintptr(right.a))
	}
	if got := leafAt(left.a).value; got != 42 {
		t.Errorf("leaf value = %d, want 42", got)
	}
}

func TestCollectCopiesInBreadthFirstOrder(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)

	// root -> (x, y), x.a -> z. With one root, Cheney order is root,
	// x, y, z: parents strictly before children, siblings adjacent.
	var root Handle
	m.PushRoot(&root)
	root.Set(allocPair(m, tk, 1))
	var tmp Handle
	m.PushRoot(&tmp)
	tmp.Set(allocPair(m, tk, 2))
	pairAt(root.Get()).a = tmp.Get()
	tmp.Set(allocPair(m, tk, 3))
	pairAt(root.Get()).b = tmp.Get()
	tmp.Set(allocLeaf(m, tk, 4))
	pairAt(pairAt(root.Get()).a).a = tmp.Get()
	m.PopRoot()

	m.GC()

	r := root.Get()
	x := pairAt(r).a
	y := pairAt(r).b
	z := pairAt(x).a
	if !(r < x && x < y && y < z) {
		t.Errorf("copy order root=%#x x=%#x y=%#x z=%#x, want strictly ascending",
			uintptr(r), uintptr(x), uintptr(y), uintptr(z))
	}
	if x-r != Ref(alignUp(pairSize, Alignment)) {
		t.Errorf("x is %d bytes after root, want %d", x-r, alignUp(pairSize, Alignment))
	}
}

func TestCollectBumpsGeneration(t *testing.T) {
	h, m, _ := newTestHeap(t, 1<<20)
	for want := int64(1); want <= 3; want++ {
		m.GC()
		if h.semi.count != want {
			t.Fatalf("generation = %d after %d collections", h.semi.count, want)
		}
	}
}

func TestCollectWithNilRefsAndEmptyRoots(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)
	m.GC() // nothing rooted at all

	var p Handle
	m.PushRoot(&p)
	p.Set(allocPair(m, tk, 7)) // both fields stay nil
	m.GC()
	if got := pairAt(p.Get()).id; got != 7 {
		t.Errorf("id = %d, want 7", got)
	}
	if a := pairAt(p.Get()).a; a != 0 {
		t.Errorf("nil field rewritten to %#x", uintptr(a))
	}
}

func TestCollectFatalOnForeignReference(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)
	var p Handle
	m.PushRoot(&p)
	p.Set(allocPair(m, tk, 1))
	pairAt(p.Get()).a = Ref(2) // not nil, not in any space
	wantFatal(t, ReasonCorrupt, m.GC)
}

func TestCollectFatalOnInvalidKindTag(t *testing.T) {
	_, m, tk := newTestHeap(t, 1<<20)
	var p Handle
	m.PushRoot(&p)
	p.Set(m.Allocate(tk.blob, LargeObjectThreshold)) // lands in the large space
	(*testBlob)(p.Get().Pointer()).size = LargeObjectThreshold
	storeWord(uintptr(p.Get()), 0xFF) // far beyond the registered kinds
	wantFatal(t, ReasonCorrupt, m.GC)
}

func TestTraceWritesOneLinePerCollection(t *testing.T) {
	var buf bytes.Buffer
	h, m, err := Initialize(Config{HeapSize: 1 << 20, Trace: &buf})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(h.Release)
	tk := registerTestKinds(h)

	var p Handle
	m.PushRoot(&p)
	p.Set(allocPair(m, tk, 1))
	m.GC()
	m.GC()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("trace wrote %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "gc 1: copied 1 objects") {
		t.Errorf("first trace line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "gc 2: copied 1 objects") {
		t.Errorf("second trace line = %q", lines[1])
	}
}
