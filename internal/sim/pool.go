package sim

import "sync"

// SnapshotPool recycles position buffers for observers that copy the world
// every frame.
type SnapshotPool struct {
	pool sync.Pool
}

func NewSnapshotPool() *SnapshotPool {
	return &SnapshotPool{
		pool: sync.Pool{
			New: func() interface{} {
				return Snapshot(nil)
			},
		},
	}
}

func (p *SnapshotPool) Get() Snapshot {
	return p.pool.Get().(Snapshot)
}

func (p *SnapshotPool) Put(s Snapshot) {
	if s == nil {
		return
	}
	p.pool.Put(s[:0])
}

// Capture snapshots w into a pooled buffer.
func (p *SnapshotPool) Capture(w *World) Snapshot {
	return w.Snapshot(p.Get())
}
