package bridge

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/maxpert/mxbridge/mx"
	"github.com/maxpert/mxbridge/telemetry"
)

// Entry describes one registered native matrix.
type Entry struct {
	Name         string    `json:"name" msgpack:"name"`
	Rows         int       `json:"rows" msgpack:"rows"`
	Cols         int       `json:"cols" msgpack:"cols"`
	Fingerprint  uint64    `json:"fingerprint" msgpack:"fingerprint"`
	RegisteredAt time.Time `json:"registered_at" msgpack:"registered_at"`
}

// releaseGuard destroys its handle at most once.
type releaseGuard struct {
	once   sync.Once
	handle mx.Matrix
}

func (g *releaseGuard) release() (released bool) {
	g.once.Do(func() {
		g.handle.Destroy()
		released = true
	})
	return released
}

type record struct {
	Entry
	guard *releaseGuard
}

// Registry owns the native matrices a session uploaded and releases them
// in bulk. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	records []record
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register takes ownership of handle, recorded under the variable name it
// was bound to.
func (r *Registry) Register(name string, handle mx.Matrix) error {
	if handle == nil {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.guard.handle == handle {
			return ErrAlreadyRegistered
		}
	}

	entry := Entry{
		Name:         name,
		Fingerprint:  xxhash.Sum64(handle.Data()),
		RegisteredAt: time.Now(),
	}
	if dims := handle.Dimensions(); len(dims) == 2 {
		entry.Rows, entry.Cols = dims[0], dims[1]
	}
	r.records = append(r.records, record{Entry: entry, guard: &releaseGuard{handle: handle}})
	return nil
}

// ReleaseAll destroys every registered handle in registration order and
// empties the registry. It returns the number of handles released.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	records := r.records
	r.records = nil
	r.mu.Unlock()

	released := 0
	for _, rec := range records {
		if rec.guard.release() {
			released++
		}
	}
	if released > 0 {
		telemetry.HandlesReleasedTotal.Add(float64(released))
	}
	return released
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Entries returns a snapshot of the registered entries.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Entry
	}
	return out
}
