package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlaps(a, b Chunk) bool {
	return a.Start < b.End() && b.Start < a.End()
}

func TestArrayChunksNeverOverlap(t *testing.T) {
	a := NewArray[int](0)
	var live []Chunk
	for _, n := range []int{3, 5, 2, 7} {
		live = append(live, a.Add(n))
	}
	a.Remove(live[1])
	live = append(live[:1], live[2:]...)
	live = append(live, a.Add(4), a.Add(1), a.Add(6))

	for i := range live {
		assert.LessOrEqual(t, live[i].UseLength, live[i].Length)
		for j := i + 1; j < len(live); j++ {
			assert.False(t, overlaps(live[i], live[j]), "%v overlaps %v", live[i], live[j])
		}
	}
	assert.Equal(t, 3+2+7+4+1+6, a.Count())
}

func TestArrayReusesFreedRange(t *testing.T) {
	a := NewArray[float32](0)
	c0 := a.Add(4)
	c1 := a.Add(4)
	a.Add(4)

	a.Remove(c1)
	a.Remove(c1)
	reused := a.Add(3)
	assert.Equal(t, c1.Start, reused.Start)
	assert.Equal(t, 0, c0.Start)
}

func TestArrayRemoveMergesAndShrinks(t *testing.T) {
	a := NewArray[int](0)
	c0 := a.Add(2)
	c1 := a.Add(2)
	c2 := a.Add(2)

	a.Remove(c1)
	a.Remove(c2)
	assert.Equal(t, 2, a.Len())

	a.Remove(c0)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, a.Count())
}

func TestArrayExpandMovesWholeChunk(t *testing.T) {
	a := NewArray[int](0)
	c := a.AddSlice([]int{1, 2, 3})
	a.Add(1)

	grown := a.Expand(c, 6)
	require.True(t, grown.IsValid())
	assert.Equal(t, 6, grown.Length)
	assert.Equal(t, []int{1, 2, 3}, a.Slice(grown))
}

func TestArrayAddZero(t *testing.T) {
	a := NewArray[int](0)
	assert.False(t, a.Add(0).IsValid())
	assert.Nil(t, a.Slice(Empty))
}

func TestFreeList(t *testing.T) {
	l := NewFreeList[string]()
	a := l.Add("a")
	b := l.Add("b")
	l.Remove(a)
	assert.False(t, l.Exists(a))
	assert.Equal(t, 1, l.Count())

	c := l.Add("c")
	assert.Equal(t, a, c)

	v, ok := l.Get(b)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	var seen []string
	l.Each(func(i int, v *string) bool {
		seen = append(seen, *v)
		return true
	})
	assert.Equal(t, []string{"c", "b"}, seen)
}
