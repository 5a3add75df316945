package dynamo

import "sync"

// Handle tracks completion of a scheduled pass. The zero value and nil are
// both treated as already complete.
type Handle struct {
	done chan struct{}
	once sync.Once
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) finish() {
	h.once.Do(func() { close(h.done) })
}

// Complete blocks until the pass and all of its dependencies have finished.
func (h *Handle) Complete() {
	if h == nil || h.done == nil {
		return
	}
	<-h.done
}

// Completed reports whether the pass has finished without blocking.
func (h *Handle) Completed() bool {
	if h == nil || h.done == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a completed handle.
func Done() *Handle {
	h := newHandle()
	h.finish()
	return h
}

func wait(deps []*Handle) {
	for _, d := range deps {
		d.Complete()
	}
}

// Schedule runs fn after every dependency has completed.
func Schedule(fn func(), deps ...*Handle) *Handle {
	h := newHandle()
	go func() {
		defer h.finish()
		wait(deps)
		fn()
	}()
	return h
}

// ScheduleFor runs fn over [0, n) split into batches of at least batch
// elements once every dependency has completed.
func ScheduleFor(n, batch int, fn func(start, end int), deps ...*Handle) *Handle {
	return Schedule(func() {
		ParallelFor(n, batch, fn)
	}, deps...)
}

// Combine returns a handle that completes when all inputs complete.
func Combine(deps ...*Handle) *Handle {
	switch len(deps) {
	case 0:
		return Done()
	case 1:
		if deps[0] != nil {
			return deps[0]
		}
		return Done()
	}
	return Schedule(func() {}, deps...)
}
