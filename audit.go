package semispace

// Audit mode cross-checks the collector against itself: the set of reachable
// objects, fingerprinted by payload, must be the same before and after a
// collection. Each fingerprint covers the object's bytes with the kind tag
// mixed in and every reference slot masked out, so it does not depend on
// where the object or its neighbors happen to live. The two multisets of
// fingerprints must match; anything else means tracing lost, duplicated, or
// damaged an object.

import (
	"sort"

	"github.com/sigurn/crc16"
)

var auditTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// auditSum fingerprints one object.
func (h *Heap) auditSum(obj Ref) uint16 {
	tag := loadWord(uintptr(obj))
	info := &h.kinds[tag]
	payload := make([]byte, info.Size(obj)-HeaderSize)
	copyOut(payload, uintptr(obj)+HeaderSize)
	if info.Visit != nil {
		info.Visit(obj, func(slot *Ref) {
			off := slotOffset(obj, slot) - HeaderSize
			for i := uintptr(0); i < HeaderSize; i++ {
				payload[off+i] = 0
			}
		})
	}
	return crc16.Update(crc16.Checksum([]byte{byte(tag)}, auditTable), payload, auditTable)
}

// auditWalk visits every object reachable from the roots exactly once. The
// walk keeps its state in ordinary Go memory and does not touch headers, so
// it is safe to run right before or right after a collection.
func (h *Heap) auditWalk(m *Mutator, fn func(Ref)) {
	seen := make(map[Ref]bool)
	var walk func(Ref)
	walk = func(obj Ref) {
		if obj == 0 || seen[obj] {
			return
		}
		seen[obj] = true
		tag := loadWord(uintptr(obj))
		if tag >= uintptr(len(h.kinds)) {
			fatal(ReasonCorrupt, "audit: object at %#x has invalid kind tag %#x", uintptr(obj), tag)
		}
		fn(obj)
		if visit := h.kinds[tag].Visit; visit != nil {
			visit(obj, func(slot *Ref) { walk(*slot) })
		}
	}
	for r := m.roots; r != nil; r = r.next {
		walk(r.ref)
	}
}

func (h *Heap) auditBefore(m *Mutator) {
	h.auditSums = h.auditSums[:0]
	h.auditWalk(m, func(obj Ref) {
		h.auditSums = append(h.auditSums, h.auditSum(obj))
	})
}

func (h *Heap) auditAfter(m *Mutator) {
	after := make([]uint16, 0, len(h.auditSums))
	h.auditWalk(m, func(obj Ref) {
		after = append(after, h.auditSum(obj))
	})
	if !sameFingerprints(h.auditSums, after) {
		fatal(ReasonCorrupt, "audit: reachable set changed across collection (%d objects before, %d after)",
			len(h.auditSums), len(after))
	}
}

// sameFingerprints compares two fingerprint multisets. Both slices are
// scratch space and get sorted in place.
func sameFingerprints(before, after []uint16) bool {
	if len(before) != len(after) {
		return false
	}
	sort.Slice(before, func(i, j int) bool { return before[i] < before[j] })
	sort.Slice(after, func(i, j int) bool { return after[i] < after[j] })
	for i := range before {
		if before[i] != after[i] {
			return false
		}
	}
	return true
}
