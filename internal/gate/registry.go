package gate

import (
	"hash/fnv"
	"sync"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
)

// Registry maps vehicle identity to compliance state, sharded by the same
// hash that routes samples to workers. A vehicle's state is only ever
// mutated by the worker owning its shard; the per-shard lock exists so
// observers (gauges, tests) can read without racing that worker. There is
// deliberately no global lock: unrelated vehicles never serialize.
type Registry struct {
	shards []*registryShard
}

type registryShard struct {
	mu       sync.RWMutex
	vehicles map[string]*VehicleState
}

func NewRegistry(shards int) *Registry {
	if shards <= 0 {
		shards = 1
	}
	r := &Registry{shards: make([]*registryShard, shards)}
	for i := range r.shards {
		r.shards[i] = &registryShard{vehicles: make(map[string]*VehicleState)}
	}
	return r
}

// ShardIndex returns the stable partition for a vehicle id.
func (r *Registry) ShardIndex(vehicleID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vehicleID))
	return int(h.Sum32() % uint32(len(r.shards)))
}

// WithState runs fn with the vehicle's state under its shard lock, creating
// the state on first sight. fn must not retain the pointer.
func (r *Registry) WithState(vehicleID string, fn func(*VehicleState)) {
	shard := r.shards[r.ShardIndex(vehicleID)]
	shard.mu.Lock()
	st, ok := shard.vehicles[vehicleID]
	if !ok {
		st = newVehicleState()
		shard.vehicles[vehicleID] = st
	}
	fn(st)
	shard.mu.Unlock()
}

// Snapshot returns a copy of a vehicle's state for inspection.
func (r *Registry) Snapshot(vehicleID string) (VehicleState, bool) {
	shard := r.shards[r.ShardIndex(vehicleID)]
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	st, ok := shard.vehicles[vehicleID]
	if !ok {
		return VehicleState{}, false
	}
	return *st, true
}

// Classification is a convenience lookup; unknown vehicles are STABLE.
func (r *Registry) Classification(vehicleID string) domain.Classification {
	st, ok := r.Snapshot(vehicleID)
	if !ok {
		return domain.ClassStable
	}
	return st.Classification
}

// Size reports the number of distinct vehicles tracked.
func (r *Registry) Size() int {
	n := 0
	for _, shard := range r.shards {
		shard.mu.RLock()
		n += len(shard.vehicles)
		shard.mu.RUnlock()
	}
	return n
}
