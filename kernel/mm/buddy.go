package mm

import kerrors "github.com/emberkernel/ember/kernel/errors"

// buddyAllocator is the binary-buddy page allocator described in
// spec.md §4.1 and §4.2: a region table plus one free list per order,
// 0..MaxOrder. Free-list membership is the only state a block carries —
// there is no separate "free" flag.
type buddyAllocator struct {
	regions    [MaxNumRegions]Region
	numRegions int

	freeLists [MaxOrder + 1]Descriptor // sentinel heads
	initDone  bool
}

func (b *buddyAllocator) ensureInit() {
	if b.initDone {
		return
	}
	for i := range b.freeLists {
		b.freeLists[i].initHead()
	}
	b.initDone = true
}

// Register donates addr..addr+size to the allocator. size must be a
// positive multiple of PageSize. A trailing strip of size is carved off
// to hold the region's page descriptors; the remainder becomes the
// allocatable prefix and is handed to donate for buddy-block bootstrap.
func (b *buddyAllocator) Register(addr, size uintptr) error {
	b.ensureInit()

	if size == 0 || size%PageSize != 0 {
		return kerrors.ErrInvalidArgument
	}
	if b.numRegions >= MaxNumRegions {
		return kerrors.ErrNoSpace
	}

	npages := size / PageSize
	memmapBytes := alignUp(npages*descriptorSize, PageSize)
	if memmapBytes >= size {
		return kerrors.ErrOutOfRange
	}

	r := &b.regions[b.numRegions]
	r.base = addr
	r.size = size
	r.allocSize = size - memmapBytes
	r.descriptors = make([]Descriptor, npages)
	r.registered = true
	b.numRegions++

	b.donate(addr, r.allocSize)
	return nil
}

func (b *buddyAllocator) regionContaining(addr uintptr) *Region {
	for i := range b.regions[:b.numRegions] {
		if b.regions[i].contains(addr) {
			return &b.regions[i]
		}
	}
	return nil
}

func (b *buddyAllocator) describe(addr uintptr) (*Descriptor, bool) {
	r := b.regionContaining(addr)
	if r == nil {
		return nil, false
	}
	return r.descriptorAt(addr), true
}

// donate walks an arbitrary, page-aligned extent as a sequence of
// maximal aligned power-of-two blocks and frees each in turn. It is the
// single reusable primitive behind region registration, the leftover
// tail of a non-power-of-two page allocation, and ordinary FreePages —
// all three are "give this byte range back to the buddy allocator".
func (b *buddyAllocator) donate(addr, size uintptr) {
	for size > 0 {
		pages := size / PageSize
		order := pageAlignOrder(addr)
		if fo := floorLog2(pages); fo < order {
			order = fo
		}
		if order > MaxOrder {
			order = MaxOrder
		}
		blockBytes := (uintptr(1) << uint(order)) * PageSize
		assert(blockBytes <= size, "donate: block overruns the remaining extent")
		b.freeExtent(addr, order)
		addr += blockBytes
		size -= blockBytes
	}
}

// freeExtent clears the descriptors for one power-of-two block at addr,
// then coalesces it with its buddy for as long as the buddy is free and
// at the same order, finally installing the (possibly grown) block on
// the appropriate free list.
func (b *buddyAllocator) freeExtent(addr uintptr, order int) {
	region := b.regionContaining(addr)
	assert(region != nil, "donate: address does not belong to any registered region")

	count := uintptr(1) << uint(order)
	for i := uintptr(0); i < count; i++ {
		region.descriptorAt(addr + i*PageSize).clear()
	}

	curAddr, curOrder := addr, order
	for curOrder < MaxOrder {
		buddyAddr := curAddr ^ (PageSize << uint(curOrder))
		if buddyAddr < region.base || buddyAddr >= region.end() {
			break
		}
		buddyDesc := region.descriptorAt(buddyAddr)
		wantSize := (uintptr(1) << uint(curOrder)) * PageSize
		if buddyDesc.Size != wantSize || !buddyDesc.linked() {
			break
		}
		buddyDesc.unlink()
		buddyDesc.Addr, buddyDesc.Size = 0, 0
		if buddyAddr < curAddr {
			curAddr = buddyAddr
		}
		curOrder++
	}

	leader := region.descriptorAt(curAddr)
	leader.Addr = curAddr
	leader.Size = (uintptr(1) << uint(curOrder)) * PageSize
	leader.pushFront(&b.freeLists[curOrder])
}

// takeBlock removes and returns a free leader of exactly the given
// order, splitting a larger free block if necessary. It returns nil if
// no block of that order or larger is available.
func (b *buddyAllocator) takeBlock(order int) *Descriptor {
	k := order
	for k <= MaxOrder && b.freeLists[k].empty() {
		k++
	}
	if k > MaxOrder {
		return nil
	}

	leader := b.freeLists[k].next
	leader.unlink()

	if DebugAssertions {
		region := b.regionContaining(leader.Addr)
		for i := uintptr(1); i < uintptr(1)<<uint(k); i++ {
			f := region.descriptorAt(leader.Addr + i*PageSize)
			assert(f.Addr == 0 && f.Size == 0, "allocate: free block has a follower descriptor that is not clear")
		}
	}

	for k > order {
		k--
		half := (uintptr(1) << uint(k)) * PageSize
		buddyAddr := leader.Addr + half
		region := b.regionContaining(leader.Addr)
		buddyDesc := region.descriptorAt(buddyAddr)
		buddyDesc.Addr = buddyAddr
		buddyDesc.Size = half
		buddyDesc.pushFront(&b.freeLists[k])
		leader.Size = half
	}
	return leader
}

// AllocatePages returns a descriptor for a block of at least size bytes,
// rounded up internally to a power-of-two number of pages. size must be
// a positive multiple of PageSize. Any excess past the requested size is
// donated back immediately, so the returned descriptor's Size is exactly
// the caller's size. Returns nil if no block is available.
func (b *buddyAllocator) AllocatePages(size uintptr) *Descriptor {
	b.ensureInit()
	if size == 0 || size%PageSize != 0 {
		return nil
	}
	pages := size / PageSize
	order := ceilLog2(pages)
	if order > MaxOrder {
		return nil
	}

	leader := b.takeBlock(order)
	if leader == nil {
		return nil
	}

	blockBytes := (uintptr(1) << uint(order)) * PageSize
	if blockBytes > size {
		b.donate(leader.Addr+size, blockBytes-size)
	}
	leader.Size = size
	return leader
}

// FreePages returns a block previously obtained from AllocatePages (or
// repurposed from an emptied slab block) to the allocator. d.Addr and
// d.Size must describe the block being freed; both fields are cleared as
// part of the donate walk.
func (b *buddyAllocator) FreePages(d *Descriptor) {
	assert(d != nil && d.Size > 0, "free: not a live page allocation")
	addr, size := d.Addr, d.Size
	b.donate(addr, size)
}

// freeListLen reports how many blocks currently sit on the free list for
// order k, used by Stats.
func (b *buddyAllocator) freeListLen(order int) int {
	n := 0
	for d := b.freeLists[order].next; d != &b.freeLists[order]; d = d.next {
		n++
	}
	return n
}
