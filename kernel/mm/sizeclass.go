package mm

// numSizeClasses is the number of slab size classes, orders
// MinAllocOrder..MaxSmallOrder inclusive.
const numSizeClasses = MaxSmallOrder - MinAllocOrder + 1

// blockOrderProfile gives B(o), the buddy order a block for size class o
// is carved from, indexed by o-MinAllocOrder. Chosen so no class's chunk
// capacity (plus the header bit) exceeds MaxAllocCount, which the 32-byte
// class reaches exactly, while keeping small classes (32-128 bytes) to a
// single page.
var blockOrderProfile = [numSizeClasses]int{
	0, // order 5  (32B)  -> 1-page blocks
	0, // order 6  (64B)  -> 1-page blocks
	0, // order 7  (128B) -> 1-page blocks
	1, // order 8  (256B) -> 2-page blocks
	2, // order 9  (512B) -> 4-page blocks
	3, // order 10 (1024B) -> 8-page blocks
	3, // order 11 (2048B) -> 8-page blocks
}

// slabClass describes one small-object size class.
type slabClass struct {
	order      int // log2(chunk size)
	blockOrder int // B(o)
	capacity   int // N(o): usable chunk slots per block, excludes the header bit
	partial    Descriptor
}

func newSlabClasses() [numSizeClasses]slabClass {
	var classes [numSizeClasses]slabClass
	for i := range classes {
		order := MinAllocOrder + i
		blockOrder := blockOrderProfile[i]
		capacity := (1 << uint(PageShift+blockOrder-order)) - 1
		if capacity+1 > MaxAllocCount {
			panic("mm: size class profile exceeds MaxAllocCount capacity")
		}
		classes[i] = slabClass{order: order, blockOrder: blockOrder, capacity: capacity}
		classes[i].partial.initHead()
	}
	return classes
}
