package chunk

// FreeList stores single items in slots that are reused after removal.
type FreeList[T any] struct {
	items []T
	used  []bool
	free  []int
}

func NewFreeList[T any]() *FreeList[T] {
	return &FreeList[T]{}
}

func (l *FreeList[T]) Add(v T) int {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.items[i] = v
		l.used[i] = true
		return i
	}
	l.items = append(l.items, v)
	l.used = append(l.used, true)
	return len(l.items) - 1
}

func (l *FreeList[T]) Remove(i int) {
	if !l.Exists(i) {
		return
	}
	var zero T
	l.items[i] = zero
	l.used[i] = false
	l.free = append(l.free, i)
}

func (l *FreeList[T]) Exists(i int) bool {
	return i >= 0 && i < len(l.items) && l.used[i]
}

func (l *FreeList[T]) Get(i int) (T, bool) {
	if !l.Exists(i) {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Ptr returns a pointer to slot i or nil when the slot is empty.
func (l *FreeList[T]) Ptr(i int) *T {
	if !l.Exists(i) {
		return nil
	}
	return &l.items[i]
}

func (l *FreeList[T]) Set(i int, v T) {
	if l.Exists(i) {
		l.items[i] = v
	}
}

// Len is the slot count including free slots.
func (l *FreeList[T]) Len() int { return len(l.items) }

func (l *FreeList[T]) Count() int { return len(l.items) - len(l.free) }

// Each visits live slots in index order until fn returns false.
func (l *FreeList[T]) Each(fn func(i int, v *T) bool) {
	for i := range l.items {
		if l.used[i] && !fn(i, &l.items[i]) {
			return
		}
	}
}
