// Package chunk provides flat arrays addressed by contiguous index ranges.
//
// A [Chunk] is a (start, length, used length) triple. Chunks handed out by the
// same [Array] never overlap, and only whole chunks are ever moved.
package chunk

import "fmt"

type Chunk struct {
	Start     int
	Length    int
	UseLength int
}

// Empty is the zero-length chunk returned for failed allocations.
var Empty = Chunk{Start: -1}

func (c Chunk) End() int { return c.Start + c.Length }

func (c Chunk) IsValid() bool { return c.Start >= 0 && c.Length > 0 }

func (c Chunk) Contains(i int) bool { return i >= c.Start && i < c.End() }

func (c Chunk) String() string {
	return fmt.Sprintf("[%d:%d used=%d]", c.Start, c.End(), c.UseLength)
}

// Array is a growable flat slice handing out non-overlapping chunks.
// Released ranges are kept in a free list and merged with their neighbours.
type Array[T any] struct {
	data  []T
	free  []Chunk
	count int
}

func NewArray[T any](capacity int) *Array[T] {
	return &Array[T]{data: make([]T, 0, capacity)}
}

// Len is the size of the backing slice, including free ranges.
func (a *Array[T]) Len() int { return len(a.data) }

// Count is the number of elements held by live chunks.
func (a *Array[T]) Count() int { return a.count }

// Data exposes the backing slice for passes that index it directly.
func (a *Array[T]) Data() []T { return a.data }

// Add reserves n zeroed elements.
func (a *Array[T]) Add(n int) Chunk {
	if n <= 0 {
		return Empty
	}
	a.count += n

	for i, f := range a.free {
		if f.Length < n {
			continue
		}
		c := Chunk{Start: f.Start, Length: n, UseLength: n}
		if f.Length == n {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Chunk{Start: f.Start + n, Length: f.Length - n}
		}
		var zero T
		for j := c.Start; j < c.End(); j++ {
			a.data[j] = zero
		}
		return c
	}

	start := len(a.data)
	var zero T
	for i := 0; i < n; i++ {
		a.data = append(a.data, zero)
	}
	return Chunk{Start: start, Length: n, UseLength: n}
}

// AddSlice reserves a chunk holding a copy of values.
func (a *Array[T]) AddSlice(values []T) Chunk {
	c := a.Add(len(values))
	if c.IsValid() {
		copy(a.data[c.Start:c.End()], values)
	}
	return c
}

// Remove releases a chunk. Removing an invalid or already free chunk is a no-op.
func (a *Array[T]) Remove(c Chunk) {
	if !c.IsValid() || c.End() > len(a.data) || a.isFree(c) {
		return
	}
	a.count -= c.Length

	merged := Chunk{Start: c.Start, Length: c.Length}
	out := a.free[:0]
	for _, f := range a.free {
		switch {
		case f.End() == merged.Start:
			merged = Chunk{Start: f.Start, Length: f.Length + merged.Length}
		case merged.End() == f.Start:
			merged = Chunk{Start: merged.Start, Length: merged.Length + f.Length}
		default:
			out = append(out, f)
		}
	}
	a.free = append(out, merged)

	// trailing free space shrinks the backing slice
	for i, f := range a.free {
		if f.End() == len(a.data) {
			a.data = a.data[:f.Start]
			a.free = append(a.free[:i], a.free[i+1:]...)
			break
		}
	}
}

func (a *Array[T]) isFree(c Chunk) bool {
	for _, f := range a.free {
		if c.Start >= f.Start && c.Start < f.End() {
			return true
		}
	}
	return false
}

// Expand moves c into a chunk of length n, keeping existing values.
func (a *Array[T]) Expand(c Chunk, n int) Chunk {
	if !c.IsValid() {
		return a.Add(n)
	}
	if n <= c.Length {
		c.UseLength = n
		return c
	}
	tmp := make([]T, c.UseLength)
	copy(tmp, a.Slice(c))
	a.Remove(c)
	nc := a.Add(n)
	copy(a.data[nc.Start:], tmp)
	nc.UseLength = len(tmp)
	return nc
}

// Slice returns the used portion of c. The slice aliases the backing store.
func (a *Array[T]) Slice(c Chunk) []T {
	if !c.IsValid() || c.End() > len(a.data) {
		return nil
	}
	return a.data[c.Start : c.Start+c.UseLength]
}

func (a *Array[T]) Fill(c Chunk, v T) {
	for i := range a.Slice(c) {
		a.data[c.Start+i] = v
	}
}

func (a *Array[T]) Get(i int) T { return a.data[i] }

func (a *Array[T]) Set(i int, v T) { a.data[i] = v }

// Ptr returns a pointer into the backing slice. It is invalidated by Add.
func (a *Array[T]) Ptr(i int) *T { return &a.data[i] }
