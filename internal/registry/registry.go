// Package registry tracks what's resident on the accelerator and how
// much device memory is in use. It is purely observational: it never
// loads or unloads anything itself, only records the models it is told
// about through Register/Unregister and answers capacity queries (CanFit).
package registry

import (
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
)

// ModelInfo describes a single loaded model for VRAM accounting.
type ModelInfo struct {
	ModelID        string
	EstimatedBytes uint64
	LoraIDs        []string
}

// Stats is the snapshot returned by Stats().
type Stats struct {
	LoadedModels   []string `json:"loadedModels"`
	UsedBytes      uint64   `json:"usedBytes"`
	AvailableBytes uint64   `json:"availableBytes"`
	TotalBytes     uint64   `json:"totalBytes"`
}

// deviceMemory abstracts the live memory source so tests can substitute a
// fake without touching the host.
type deviceMemory interface {
	usedBytes() uint64
	totalBytes() uint64
}

// hostMemory proxies host RAM via gopsutil as a stand-in for device VRAM
// when no vendor NVML binding is linked into the binary.
type hostMemory struct{}

func (hostMemory) usedBytes() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Used
}

func (hostMemory) totalBytes() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total
}

// Registry tracks registered models and answers capacity questions. All
// mutators and readers take the same mutex. Nothing outside this
// package's tests calls Register or Unregister: the pool and the workers
// do not record loads or unloads, so Stats().LoadedModels is empty in a
// running server.
type Registry struct {
	mu     sync.Mutex
	models map[string]ModelInfo
	device deviceMemory
}

// New constructs a Registry backed by live host-memory sampling.
func New() *Registry {
	return &Registry{
		models: make(map[string]ModelInfo),
		device: hostMemory{},
	}
}

// newWithDevice is used by tests to inject a fake memory source.
func newWithDevice(d deviceMemory) *Registry {
	return &Registry{
		models: make(map[string]ModelInfo),
		device: d,
	}
}

// Register records a model as resident.
func (r *Registry) Register(info ModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[info.ModelID] = info
}

// Unregister removes a model from the resident set.
func (r *Registry) Unregister(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, modelID)
}

// IsLoaded reports whether modelID is currently recorded as resident.
func (r *Registry) IsLoaded(modelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.models[modelID]
	return ok
}

// UsedBytes returns the live device memory usage, queried directly from
// the host rather than summed from estimates, since the actual driver
// state is authoritative.
func (r *Registry) UsedBytes() uint64 {
	return r.device.usedBytes()
}

// AvailableBytes returns total device memory minus used.
func (r *Registry) AvailableBytes() uint64 {
	total := r.device.totalBytes()
	used := r.device.usedBytes()
	if used >= total {
		return 0
	}
	return total - used
}

// CanFit forecasts whether a model of estBytes would fit in the currently
// available device memory, using the live reading rather than the sum of
// registered estimates.
func (r *Registry) CanFit(estBytes uint64) bool {
	return estBytes <= r.AvailableBytes()
}

// Stats returns a snapshot of the registry's current view.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	loaded := make([]string, 0, len(r.models))
	for id := range r.models {
		loaded = append(loaded, id)
	}
	r.mu.Unlock()

	return Stats{
		LoadedModels:   loaded,
		UsedBytes:      r.device.usedBytes(),
		AvailableBytes: r.AvailableBytes(),
		TotalBytes:     r.device.totalBytes(),
	}
}
