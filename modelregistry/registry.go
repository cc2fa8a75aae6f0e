// Package modelregistry tracks every model currently loaded in memory,
// independent of which one (if any) is actively serving requests. The
// model pool (package modelpool) layers tier-aware eviction and instant
// switching on top of this registry.
package modelregistry

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is an opaque, stable reference to a registered model.
type Handle uint64

// State is a loaded model's lifecycle stage.
type State uint8

const (
	StateLoading State = iota
	StateReady
	StateUnloading
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnloading:
		return "unloading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Metadata describes a model independent of its runtime registration.
type Metadata struct {
	Name      string
	SizeBytes uint64
}

// Info is a point-in-time diagnostic snapshot of a registered model.
type Info struct {
	Handle        Handle
	Name          string
	Format        string
	SizeBytes     uint64
	MemoryBytes   uint64
	State         State
	RequestCount  uint64
	TotalLatencyMs float64
	LoadedAt      time.Time
}

type loadedModel struct {
	metadata    Metadata
	memoryBytes uint64
	format      string

	mu    sync.Mutex
	state State

	requestCount  atomic.Uint64
	latencyBits   atomic.Uint64 // float64 bits, updated via CAS loop
	loadedAt      time.Time
}

// Registry is a thread-safe catalogue of loaded models, keyed by handle.
type Registry struct {
	mu     sync.RWMutex
	models map[Handle]*loadedModel
	nextID atomic.Uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{models: make(map[Handle]*loadedModel)}
}

// Register adds a model under an auto-assigned handle and returns it.
func (r *Registry) Register(metadata Metadata, memoryBytes uint64) Handle {
	return r.RegisterWithFormat(metadata, memoryBytes, "unknown")
}

// RegisterWithFormat is Register plus an explicit on-disk format label.
func (r *Registry) RegisterWithFormat(metadata Metadata, memoryBytes uint64, format string) Handle {
	id := r.nextID.Add(1)
	h := Handle(id)

	m := &loadedModel{
		metadata:    metadata,
		memoryBytes: memoryBytes,
		format:      format,
		state:       StateReady,
		loadedAt:    time.Now(),
	}

	r.mu.Lock()
	r.models[h] = m
	r.mu.Unlock()

	return h
}

// Contains reports whether handle is currently registered.
func (r *Registry) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[h]
	return ok
}

// GetMetadata returns the metadata for a registered model.
func (r *Registry) GetMetadata(h Handle) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[h]
	if !ok {
		return Metadata{}, false
	}
	return m.metadata, true
}

// Unregister removes a model, returning its memory footprint if it existed.
func (r *Registry) Unregister(h Handle) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[h]
	if !ok {
		return 0, false
	}
	delete(r.models, h)
	return m.memoryBytes, true
}

// TotalMemory sums the memory footprint of every registered model.
func (r *Registry) TotalMemory() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, m := range r.models {
		total += m.memoryBytes
	}
	return total
}

// Count returns the number of registered models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// ListModels returns a diagnostic snapshot of every registered model.
func (r *Registry) ListModels() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.models))
	for h, m := range r.models {
		m.mu.Lock()
		state := m.state
		m.mu.Unlock()

		out = append(out, Info{
			Handle:         h,
			Name:           m.metadata.Name,
			Format:         m.format,
			SizeBytes:      m.metadata.SizeBytes,
			MemoryBytes:    m.memoryBytes,
			State:          state,
			RequestCount:   m.requestCount.Load(),
			TotalLatencyMs: math.Float64frombits(m.latencyBits.Load()),
			LoadedAt:       m.loadedAt,
		})
	}
	return out
}

// RecordRequest accumulates one completed request's latency against h.
func (r *Registry) RecordRequest(h Handle, latencyMs float64) {
	r.mu.RLock()
	m, ok := r.models[h]
	r.mu.RUnlock()
	if !ok {
		return
	}

	m.requestCount.Add(1)
	for {
		oldBits := m.latencyBits.Load()
		newValue := math.Float64frombits(oldBits) + latencyMs
		newBits := math.Float64bits(newValue)
		if m.latencyBits.CompareAndSwap(oldBits, newBits) {
			return
		}
	}
}

// SetState updates a registered model's lifecycle state.
func (r *Registry) SetState(h Handle, state State) {
	r.mu.RLock()
	m, ok := r.models[h]
	r.mu.RUnlock()
	if !ok {
		return
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
