package mm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/emberkernel/ember/kernel/errors"
)

// pageAligned returns a page-aligned address backed by a real buffer of
// at least pages*PageSize bytes. Tests that only care about registration
// bookkeeping (not the exact free-list shape donate() produces) don't
// need anything stronger than page alignment.
func pageAligned(pages int) (buf []byte, base uintptr) {
	size := pages * PageSize
	buf = make([]byte, size+PageSize)
	base = alignUp(uintptr(unsafe.Pointer(&buf[0])), PageSize)
	return buf, base
}

func TestRegisterRejectsNonPageMultiple(t *testing.T) {
	var b buddyAllocator
	_, base := pageAligned(4)
	assert.Equal(t, kerrors.ErrInvalidArgument, b.Register(base, PageSize+1))
}

func TestRegisterRejectsZeroSize(t *testing.T) {
	var b buddyAllocator
	_, base := pageAligned(1)
	assert.Equal(t, kerrors.ErrInvalidArgument, b.Register(base, 0))
}

func TestRegisterRejectsTooSmallForMemmap(t *testing.T) {
	// A single page can't leave any allocatable prefix once its own
	// descriptor strip rounds up to a whole page.
	_, base := pageAligned(1)
	var b buddyAllocator
	assert.Equal(t, kerrors.ErrOutOfRange, b.Register(base, PageSize))
}

func TestRegisterRejectsFifthRegion(t *testing.T) {
	var b buddyAllocator
	for i := 0; i < MaxNumRegions; i++ {
		_, base := pageAligned(64)
		require.NoError(t, b.Register(base, 64*PageSize))
	}
	_, base := pageAligned(64)
	assert.Equal(t, kerrors.ErrNoSpace, b.Register(base, 64*PageSize))
}

// TestRegisterPartitionsAllocatablePrefix checks the conservation
// invariant from spec.md §8 invariant 1: every allocatable page ends up
// on exactly one free list after registration. It deliberately does not
// assert which orders hold those pages, since that shape depends on the
// donated base address's own alignment, not just its size.
func TestRegisterPartitionsAllocatablePrefix(t *testing.T) {
	var b buddyAllocator
	_, base := pageAligned(64)
	require.NoError(t, b.Register(base, 64*PageSize))

	npages := uintptr(64)
	memmapBytes := alignUp(npages*descriptorSize, PageSize)
	wantAllocPages := int(64 - memmapBytes/PageSize)

	gotPages := 0
	for order := 0; order <= MaxOrder; order++ {
		gotPages += b.freeListLen(order) * (1 << uint(order))
	}
	assert.Equal(t, wantAllocPages, gotPages)
}

func TestRegionContainsRespectsAllocatablePrefix(t *testing.T) {
	var b buddyAllocator
	_, base := pageAligned(64)
	require.NoError(t, b.Register(base, 64*PageSize))

	r := &b.regions[0]
	assert.True(t, r.contains(base))
	assert.False(t, r.contains(base+r.size)) // past the whole donated extent
	assert.False(t, r.contains(r.end()))      // the memmap strip itself
}
