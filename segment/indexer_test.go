package segment

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexer_Basic(t *testing.T) {
	ix := NewIndexer()

	_, ok := ix.First()
	assert.False(t, ok)

	for _, h := range []Handle{9, 3, 5, 70000, 1} {
		ix.Insert(h)
	}
	ix.Insert(5)

	assert.Equal(t, 5, ix.Len())
	assert.True(t, ix.Contains(70000))
	assert.False(t, ix.Contains(4))

	first, ok := ix.First()
	require.True(t, ok)
	assert.Equal(t, Handle(1), first)

	assert.Equal(t, []Handle{1, 3, 5, 9, 70000}, slices.Collect(ix.All()))

	next, ok := ix.Next(5)
	require.True(t, ok)
	assert.Equal(t, Handle(9), next)

	// Next works from a handle that is not in the set.
	next, ok = ix.Next(10)
	require.True(t, ok)
	assert.Equal(t, Handle(70000), next)

	_, ok = ix.Next(70000)
	assert.False(t, ok)
	_, ok = ix.Next(NoHandle)
	assert.False(t, ok)

	ix.Erase(3)
	assert.False(t, ix.Contains(3))
	assert.Equal(t, 4, ix.Len())

	ix.Clear()
	assert.Zero(t, ix.Len())
}

func TestIndexer_EraseDuringWalk(t *testing.T) {
	ix := NewIndexer()
	for h := Handle(0); h < 10; h++ {
		ix.Insert(h)
	}

	var visited []Handle
	for h := range ix.All() {
		visited = append(visited, h)
		// Erase the current handle and the one two ahead.
		ix.Erase(h)
		ix.Erase(h + 2)
	}

	assert.Equal(t, []Handle{0, 1, 4, 5, 8, 9}, visited)
	assert.Zero(t, ix.Len())
}

func TestIndexer_EarlyStop(t *testing.T) {
	ix := NewIndexer()
	for h := Handle(0); h < 5; h++ {
		ix.Insert(h)
	}

	var visited []Handle
	for h := range ix.All() {
		if h == 2 {
			break
		}
		visited = append(visited, h)
	}
	assert.Equal(t, []Handle{0, 1}, visited)
}

func TestIndexer_InsertDuringWalk(t *testing.T) {
	ix := NewIndexer()
	for _, h := range []Handle{1, 4, 200000} {
		ix.Insert(h)
	}

	var visited []Handle
	for h := range ix.All() {
		visited = append(visited, h)
		if h == 1 {
			ix.Insert(2)
			ix.Insert(70000)
			ix.Insert(0)
		}
		if h == 70000 {
			ix.Erase(200000)
		}
	}
	assert.Equal(t, []Handle{1, 2, 4, 70000}, visited)
}

func TestIndexer_InterleavedWalks(t *testing.T) {
	ix := NewIndexer()
	for h := Handle(0); h < 6; h++ {
		ix.Insert(h * 3)
	}

	a, _ := ix.First()
	b, _ := ix.Next(7)
	a, ok := ix.Next(a)
	require.True(t, ok)
	assert.Equal(t, Handle(3), a)
	b, ok = ix.Next(b)
	require.True(t, ok)
	assert.Equal(t, Handle(12), b)
	a, _ = ix.Next(a)
	assert.Equal(t, Handle(6), a)
}
