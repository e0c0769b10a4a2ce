package mm

import (
	"unsafe"

	"github.com/emberkernel/ember/internal/bitutil"
)

// allocMapWords sizes a slab block's allocation map to MaxAllocCount
// bits regardless of a particular class's smaller capacity, so every
// class shares one header layout.
const allocMapWords = MaxAllocCount / 64

// slabHeader is written directly into the first bytes of a slab block's
// own backing memory — the allocator never allocates bookkeeping space
// of its own for it. Bit 0 is always set and marks the block as a slab
// block (as opposed to a block that a caller simply forgot to clear);
// bits 1..N(o) track chunk occupancy. There is no separate state field:
// SATURATED is exactly "this block's leader is not on its class's
// partial list" (see Descriptor.linked).
type slabHeader struct {
	allocMap [allocMapWords]uint64
}

func headerAt(addr uintptr) *slabHeader {
	return (*slabHeader)(unsafe.Pointer(addr))
}

// slabAllocator carves page-level blocks from a buddyAllocator into
// fixed-size chunks, per spec.md §4.3.
type slabAllocator struct {
	buddy   *buddyAllocator
	classes [numSizeClasses]slabClass
}

func newSlabAllocator(b *buddyAllocator) *slabAllocator {
	s := &slabAllocator{buddy: b, classes: newSlabClasses()}
	// The class array was copied, so each partial-list head must point at
	// its new location rather than at the returned temporary.
	for i := range s.classes {
		s.classes[i].partial.initHead()
	}
	return s
}

func classIndex(order int) int { return order - MinAllocOrder }

func sizeClassOrder(size uintptr) int {
	order := ceilLog2(size)
	if order < MinAllocOrder {
		order = MinAllocOrder
	}
	return order
}

// Allocate returns a pointer to a fresh chunk of at least size bytes, or
// nil if size is zero or no memory is available. Requests larger than
// 2^MaxSmallOrder bypass the slab classes and go straight to the page
// allocator.
func (s *slabAllocator) Allocate(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	if size > (1 << MaxSmallOrder) {
		pages := alignUp(size, PageSize) / PageSize
		d := s.buddy.AllocatePages(pages * PageSize)
		if d == nil {
			return nil
		}
		return unsafe.Pointer(d.Addr) //nolint:govet // kernel-style raw address handoff
	}

	order := sizeClassOrder(size)
	class := &s.classes[classIndex(order)]
	if class.partial.empty() {
		if !s.growClass(class) {
			return nil
		}
	}
	return s.allocFromBlock(class, class.partial.next)
}

// growClass obtains a fresh block from the buddy allocator, writes a
// zeroed header into it, and pushes it onto class's partial list.
func (s *slabAllocator) growClass(class *slabClass) bool {
	blockBytes := (uintptr(1) << uint(class.blockOrder)) * PageSize
	d := s.buddy.AllocatePages(blockBytes)
	if d == nil {
		return false
	}

	header := headerAt(d.Addr)
	bm := bitutil.Wrap(header.allocMap[:])
	bm.Reset()
	bm.Set(0)

	chunkSize := uintptr(1) << uint(class.order)
	blockPages := uintptr(1) << uint(class.blockOrder)
	region := s.buddy.regionContaining(d.Addr)
	for i := uintptr(0); i < blockPages; i++ {
		pd := region.descriptorAt(d.Addr + i*PageSize)
		pd.Addr = d.Addr
		pd.Size = chunkSize
	}

	d.pushFront(&class.partial)
	return true
}

// allocFromBlock claims the lowest free chunk in leader's block,
// saturating (unlinking) the block if that was its last free chunk.
func (s *slabAllocator) allocFromBlock(class *slabClass, leader *Descriptor) unsafe.Pointer {
	header := headerAt(leader.Addr)
	bm := bitutil.Wrap(header.allocMap[:])

	idx := bm.LowestFreeIndex()
	assert(idx > 0 && idx <= class.capacity, "allocate: slab block has no free chunk on the partial list")
	bm.Set(idx)
	if bm.LowestFreeIndex() > class.capacity {
		leader.unlink()
	}

	chunkSize := uintptr(1) << uint(class.order)
	return unsafe.Pointer(leader.Addr + uintptr(idx)*chunkSize) //nolint:govet
}

// Deallocate releases a pointer previously returned by Allocate. A nil
// pointer is a no-op. Passing a pointer that was never returned by
// Allocate is a programmer error: sanitised builds abort via assert,
// production builds silently do nothing.
func (s *slabAllocator) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	addr := uintptr(ptr)
	d, ok := s.buddy.describe(addr)
	if !ok {
		assert(false, "deallocate: pointer does not belong to any registered region")
		return
	}

	switch {
	case d.Size == 0:
		assert(false, "deallocate: pointer does not reference a live allocation")
	case d.Size > (1 << MaxSmallOrder):
		assert(d.Addr == addr, "deallocate: pointer is not the base of its page allocation")
		s.buddy.FreePages(d)
	default:
		s.deallocateChunk(d, addr)
	}
}

func (s *slabAllocator) deallocateChunk(d *Descriptor, addr uintptr) {
	order := floorLog2(d.Size)
	class := &s.classes[classIndex(order)]
	blockBase := d.Addr

	region := s.buddy.regionContaining(blockBase)
	leader := region.descriptorAt(blockBase)

	chunkSize := d.Size
	idx := (addr - blockBase) / chunkSize
	assert(idx > 0 && int(idx) <= class.capacity, "deallocate: chunk index out of range for its block")

	header := headerAt(blockBase)
	bm := bitutil.Wrap(header.allocMap[:])

	wasSaturated := !leader.linked()
	if wasSaturated {
		leader.pushFront(&class.partial)
	}
	bm.Clear(int(idx))

	if bm.PopCount() == 1 {
		bm.Clear(0)
		leader.unlink()
		leader.Size = (uintptr(1) << uint(class.blockOrder)) * PageSize
		s.buddy.FreePages(leader)
	}
}

func (s *slabAllocator) partialLen(ci int) int {
	n := 0
	head := &s.classes[ci].partial
	for d := head.next; d != head; d = d.next {
		n++
	}
	return n
}
