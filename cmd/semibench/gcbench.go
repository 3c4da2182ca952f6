package main

// The workload is the classic Boehm GCBench: a stretch tree to exercise the
// whole heap once, a long-lived tree and a long-lived array of doubles that
// must survive the entire run, and waves of short-lived binary trees built
// both top-down and bottom-up. The array is big enough to land in the
// large-object space, so the run also exercises the page-budget protocol.

import (
	"fmt"
	"io"
	"time"
	"unsafe"

	"github.com/tinygc/semispace"
)

type node struct {
	header      semispace.Header
	left, right semispace.Ref
	i, j        int32
}

type doubleArray struct {
	header semispace.Header
	length uintptr
	// length float64 values follow.
}

const (
	nodeSize        = unsafe.Sizeof(node{})
	doubleArrayBase = unsafe.Sizeof(doubleArray{})
)

type benchParams struct {
	minDepth    int
	maxDepth    int
	arrayLength uintptr
}

type bench struct {
	m            *semispace.Mutator
	kindNode     semispace.Kind
	kindArray    semispace.Kind
	stretchDepth int
	out          io.Writer
}

func newBench(m *semispace.Mutator, out io.Writer) *bench {
	b := &bench{m: m, out: out}
	h := m.Heap()
	b.kindNode = h.RegisterKind(semispace.KindInfo{
		Name: "node",
		Size: func(semispace.Ref) uintptr { return nodeSize },
		Visit: func(obj semispace.Ref, v semispace.Visitor) {
			n := (*node)(obj.Pointer())
			v(&n.left)
			v(&n.right)
		},
	})
	b.kindArray = h.RegisterKind(semispace.KindInfo{
		Name: "double-array",
		Size: func(obj semispace.Ref) uintptr {
			a := (*doubleArray)(obj.Pointer())
			return doubleArrayBase + a.length*8
		},
	})
	return b
}

func (b *bench) allocNode() semispace.Ref {
	return b.m.Allocate(b.kindNode, nodeSize)
}

func (b *bench) allocArray(length uintptr) semispace.Ref {
	ref := b.m.AllocatePointerless(b.kindArray, doubleArrayBase+length*8)
	(*doubleArray)(ref.Pointer()).length = length
	return ref
}

func arrayAt(ref semispace.Ref, i uintptr) *float64 {
	return (*float64)(unsafe.Pointer(uintptr(ref) + doubleArrayBase + i*8))
}

// populate grows the tree below the node in hold top-down. Allocation can
// move everything, so the parent is re-read through its handle after every
// child allocation.
func (b *bench) populate(depth int, hold *semispace.Handle) {
	if depth <= 0 {
		return
	}
	var child semispace.Handle
	b.m.PushRoot(&child)
	child.Set(b.allocNode())
	(*node)(hold.Get().Pointer()).left = child.Get()
	child.Set(b.allocNode())
	(*node)(hold.Get().Pointer()).right = child.Get()

	child.Set((*node)(hold.Get().Pointer()).left)
	b.populate(depth-1, &child)
	child.Set((*node)(hold.Get().Pointer()).right)
	b.populate(depth-1, &child)
	b.m.PopRoot()
}

// makeTree builds a tree of the given depth bottom-up and leaves its root in
// hold.
func (b *bench) makeTree(depth int, hold *semispace.Handle) {
	if depth <= 0 {
		hold.Set(b.allocNode())
		return
	}
	var left, right semispace.Handle
	b.m.PushRoot(&left)
	b.m.PushRoot(&right)
	b.makeTree(depth-1, &left)
	b.makeTree(depth-1, &right)
	hold.Set(b.allocNode())
	n := (*node)(hold.Get().Pointer())
	n.left = left.Get()
	n.right = right.Get()
	b.m.PopRoot()
	b.m.PopRoot()
}

func treeSize(depth int) int {
	return (1 << (depth + 1)) - 1
}

func (b *bench) numIters(depth int) int {
	return 2 * treeSize(b.stretchDepth) / treeSize(depth)
}

func (b *bench) timeConstruction(depth int) {
	iters := b.numIters(depth)
	fmt.Fprintf(b.out, "Creating %d trees of depth %d\n", iters, depth)

	var tmp semispace.Handle
	start := time.Now()
	b.m.PushRoot(&tmp)
	for i := 0; i < iters; i++ {
		tmp.Set(b.allocNode())
		b.populate(depth, &tmp)
		tmp.Set(0)
	}
	b.m.PopRoot()
	fmt.Fprintf(b.out, "\tTop down construction took %v\n", time.Since(start))

	start = time.Now()
	b.m.PushRoot(&tmp)
	for i := 0; i < iters; i++ {
		b.makeTree(depth, &tmp)
		tmp.Set(0)
	}
	b.m.PopRoot()
	fmt.Fprintf(b.out, "\tBottom up construction took %v\n", time.Since(start))
}

func (b *bench) run(p benchParams) error {
	b.stretchDepth = p.maxDepth + 2
	longLivedDepth := p.maxDepth
	peak := uintptr(treeSize(longLivedDepth))*nodeSize + doubleArrayBase + p.arrayLength*8
	fmt.Fprintf(b.out, "Live storage will peak at about %d bytes\n", peak)

	fmt.Fprintf(b.out, "Stretching memory with a binary tree of depth %d\n", b.stretchDepth)
	var tmp semispace.Handle
	b.m.PushRoot(&tmp)
	b.makeTree(b.stretchDepth, &tmp)
	tmp.Set(0)
	b.m.PopRoot()

	fmt.Fprintf(b.out, "Creating a long-lived binary tree of depth %d\n", longLivedDepth)
	var longLived semispace.Handle
	b.m.PushRoot(&longLived)
	longLived.Set(b.allocNode())
	b.populate(longLivedDepth, &longLived)

	fmt.Fprintf(b.out, "Creating a long-lived array of %d doubles\n", p.arrayLength)
	var array semispace.Handle
	b.m.PushRoot(&array)
	array.Set(b.allocArray(p.arrayLength))
	for i := uintptr(0); i < p.arrayLength/2; i++ {
		*arrayAt(array.Get(), i) = 1.0 / float64(i)
	}

	for depth := p.minDepth; depth <= p.maxDepth; depth += 2 {
		b.timeConstruction(depth)
	}

	var err error
	if longLived.Get().IsNil() {
		err = fmt.Errorf("long-lived tree lost during the run")
	} else if p.arrayLength > 2000 && *arrayAt(array.Get(), 1000) != 1.0/1000 {
		err = fmt.Errorf("long-lived array damaged during the run")
	}
	b.m.PopRoot()
	b.m.PopRoot()
	return err
}
