// Package undoring keeps the editor's local, never-synchronised stack of
// draft snapshots taken before each save.
package undoring

import (
	"bytes"
	"sync"
)

// DefaultCapacity is the number of snapshots retained.
const DefaultCapacity = 10

// Ring is a bounded newest-first stack of opaque snapshots. When full, a push
// evicts the oldest entry.
type Ring struct {
	mu        sync.RWMutex
	capacity  int
	snapshots [][]byte
}

// New returns an empty ring. A capacity below 1 selects DefaultCapacity.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity}
}

// FromSnapshots restores a ring from newest-first snapshots, dropping any
// beyond capacity.
func FromSnapshots(capacity int, snapshots [][]byte) *Ring {
	r := New(capacity)
	for i := len(snapshots) - 1; i >= 0; i-- {
		r.Push(snapshots[i])
	}
	return r
}

// Push records snapshot as the newest entry.
func (r *Ring) Push(snapshot []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append([][]byte{bytes.Clone(snapshot)}, r.snapshots...)
	if len(r.snapshots) > r.capacity {
		r.snapshots = r.snapshots[:r.capacity]
	}
}

// Pop removes and returns the newest entry. ok is false when the ring is
// empty.
func (r *Ring) Pop() (snapshot []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil, false
	}
	snapshot = r.snapshots[0]
	r.snapshots = r.snapshots[1:]
	return snapshot, true
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots)
}

func (r *Ring) Capacity() int {
	return r.capacity
}

// Snapshots returns copies of the entries, newest first.
func (r *Ring) Snapshots() [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][]byte, len(r.snapshots))
	for i, snapshot := range r.snapshots {
		out[i] = bytes.Clone(snapshot)
	}
	return out
}
