package bitutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emberkernel/ember/internal/bitutil"
)

func TestLowestFreeIndexEmpty(t *testing.T) {
	b := bitutil.New(128)
	assert.Equal(t, 0, b.LowestFreeIndex())
}

func TestSetClearGet(t *testing.T) {
	b := bitutil.New(64)
	b.Set(5)
	assert.True(t, b.Get(5))
	assert.False(t, b.Get(4))
	b.Clear(5)
	assert.False(t, b.Get(5))
}

func TestLowestFreeIndexSkipsFullWords(t *testing.T) {
	b := bitutil.New(128)
	for i := 0; i < 64; i++ {
		b.Set(i)
	}
	assert.Equal(t, 64, b.LowestFreeIndex())
	b.Set(64)
	b.Set(66)
	assert.Equal(t, 65, b.LowestFreeIndex())
}

func TestLowestFreeIndexFull(t *testing.T) {
	b := bitutil.New(64)
	for i := 0; i < b.Len(); i++ {
		b.Set(i)
	}
	assert.Equal(t, b.Len(), b.LowestFreeIndex())
}

func TestPopCount(t *testing.T) {
	b := bitutil.New(128)
	assert.Equal(t, 0, b.PopCount())
	b.Set(0)
	b.Set(63)
	b.Set(100)
	assert.Equal(t, 3, b.PopCount())
}

func TestReset(t *testing.T) {
	b := bitutil.New(64)
	b.Set(1)
	b.Set(2)
	b.Reset()
	assert.Equal(t, 0, b.PopCount())
}
