package semispace

import "unsafe"

// Object layout constants. Every object starts with a single header word and
// is aligned to 8 bytes, also on 32-bit platforms.
const (
	// Alignment is the allocation granularity. Object sizes are rounded up
	// to a multiple of it and the header word keeps every field at least
	// word-aligned.
	Alignment = 8

	// HeaderSize is the size of the header word that starts every object.
	HeaderSize = unsafe.Sizeof(Header(0))

	// maxKinds bounds how many kinds can be registered. Header words below
	// this value are kind tags; a mapped address can never be this low, so
	// tags and forwarding addresses stay disjoint.
	maxKinds = 256
)

// Ref is the address of an object in the managed heap. The zero Ref is the
// nil reference. A Ref is only stable until the next allocation: allocation
// may trigger a collection, and a collection moves objects. Refs that must
// survive an allocation go in a Handle.
type Ref uintptr

// Header is the word at the start of every heap object. Structs that
// describe an object layout to the embedder must have a Header as their
// first field. Between collections it holds the object's kind tag; while an
// object is being evacuated it briefly holds the address of the object's new
// copy instead.
type Header uintptr

// Kind identifies an object layout registered with RegisterKind.
type Kind uintptr

// Visitor is applied to every reference slot of an object during tracing.
// The slot pointer is live heap memory; the visitor may rewrite it.
type Visitor func(slot *Ref)

// KindInfo describes one object layout.
type KindInfo struct {
	// Name appears in diagnostics and traces.
	Name string

	// Size returns the object's total size in bytes, header included. It
	// may read the object's fields, so variable-length kinds must have
	// their length fields written before the next allocation. It must not
	// allocate.
	Size func(obj Ref) uintptr

	// Visit applies v to each reference slot of the object. Nil means the
	// kind holds no references.
	Visit func(obj Ref, v Visitor)
}

// IsNil reports whether r is the nil reference.
func (r Ref) IsNil() bool {
	return r == 0
}

// Pointer returns the object's memory, for casting to the embedder's layout
// struct. The result is invalidated by the next allocation.
func (r Ref) Pointer() unsafe.Pointer {
	return unsafe.Pointer(r)
}

// Kind returns the kind tag stored in the object's header.
func (r Ref) Kind() Kind {
	return Kind(loadWord(uintptr(r)))
}

// RegisterKind adds an object layout and returns its tag. Tags are dense and
// assigned in registration order. Size is mandatory; at most 256 kinds can
// be registered. Kinds must not be registered while a collection is running.
func (h *Heap) RegisterKind(info KindInfo) Kind {
	if info.Size == nil {
		panic("semispace: RegisterKind without a Size function")
	}
	if len(h.kinds) >= maxKinds {
		panic("semispace: too many registered kinds")
	}
	h.kinds = append(h.kinds, info)
	return Kind(len(h.kinds) - 1)
}

// The collector views heap memory as words and byte ranges at raw addresses.
// These helpers are the only place the root package converts between the two
// views.

func loadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func storeWord(addr uintptr, word uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = word
}

// memzero clears size bytes starting at addr.
func memzero(addr, size uintptr) {
	s := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range s {
		s[i] = 0
	}
}

// memcpy copies size bytes from src to dst. The ranges must not overlap.
func memcpy(dst, src, size uintptr) {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), size),
		unsafe.Slice((*byte)(unsafe.Pointer(src)), size))
}

// copyOut copies len(dst) bytes at addr into an ordinary Go buffer.
func copyOut(dst []byte, addr uintptr) {
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(dst)))
}

// sliceAddr returns the address of the first byte of mem.
func sliceAddr(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}

// slotOffset returns the byte offset of a reference slot within its object.
func slotOffset(obj Ref, slot *Ref) uintptr {
	return uintptr(unsafe.Pointer(slot)) - uintptr(obj)
}

// alignUp rounds addr up to a multiple of align, a power of two.
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}
