package index

import "sync/atomic"

// Holder hands the current snapshot to request handlers and lets the
// import scheduler swap in a new one without locking. Get returns nil
// until the first snapshot loads.
type Holder struct {
	cur atomic.Pointer[Snapshot]
}

func (h *Holder) Get() *Snapshot  { return h.cur.Load() }
func (h *Holder) Set(s *Snapshot) { h.cur.Store(s) }
