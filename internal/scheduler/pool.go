package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// Shortfall describes a resource that could not be granted in full.
type Shortfall struct {
	Resource  string
	Requested int
	Available int  // Units available at the time of the request
	Known     bool // False if the pool has never seen this resource
}

func (s Shortfall) String() string {
	if !s.Known {
		return fmt.Sprintf("%s: unknown resource (requested %d)", s.Resource, s.Requested)
	}
	return fmt.Sprintf("%s: requested %d, available %d", s.Resource, s.Requested, s.Available)
}

// Allocation records what a single Allocate call actually took from the pool.
type Allocation struct {
	Granted    map[string]int
	Shortfalls []Shortfall
}

// Full reports whether every requested unit was granted.
func (a Allocation) Full() bool {
	return len(a.Shortfalls) == 0
}

// PoolOption configures a ResourcePool.
type PoolOption func(*ResourcePool)

// WithStrictResources makes the pool refuse resources it was not seeded
// with: CheckRequirements rejects tasks that name them and Release no longer
// creates them.
func WithStrictResources() PoolOption {
	return func(p *ResourcePool) {
		p.strict = true
	}
}

// ResourcePool maps resource names to available unit counts.
// Every method is atomic with respect to the others.
type ResourcePool struct {
	mu     sync.Mutex
	units  map[string]int
	strict bool
}

// NewResourcePool creates a pool seeded with the given counts.
func NewResourcePool(seed map[string]int, opts ...PoolOption) (*ResourcePool, error) {
	p := &ResourcePool{units: make(map[string]int, len(seed))}
	for _, opt := range opts {
		opt(p)
	}
	for name, count := range seed {
		if name == "" {
			return nil, &ValidationError{Field: "resources", Reason: "resource name must not be empty"}
		}
		if count < 0 {
			return nil, &ValidationError{Field: "resources." + name, Reason: "seed count must not be negative"}
		}
		p.units[name] = count
	}
	return p, nil
}

// Allocate takes the requested units best-effort. Each resource is handled
// independently: a known resource with enough units is decremented, anything
// else is reported as a Shortfall and left untouched. Allocate never fails.
func (p *ResourcePool) Allocate(requirements map[string]int) Allocation {
	alloc := Allocation{Granted: make(map[string]int, len(requirements))}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, name := range sortedKeys(requirements) {
		want := requirements[name]
		if want <= 0 {
			continue
		}
		have, known := p.units[name]
		if !known || have < want {
			alloc.Shortfalls = append(alloc.Shortfalls, Shortfall{
				Resource:  name,
				Requested: want,
				Available: have,
				Known:     known,
			})
			continue
		}
		p.units[name] = have - want
		alloc.Granted[name] = want
	}
	return alloc
}

// Release returns units to the pool. A resource the pool has never seen is
// created with the released count, which can raise capacity above the seed;
// with WithStrictResources it is rejected instead and nothing changes.
func (p *ResourcePool) Release(requirements map[string]int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := sortedKeys(requirements)
	for _, name := range names {
		count := requirements[name]
		if count < 0 {
			return &ValidationError{Field: "resources." + name, Reason: "release count must not be negative"}
		}
		if _, known := p.units[name]; !known && p.strict {
			return &ValidationError{Field: "resources." + name, Reason: "release of unknown resource"}
		}
	}
	for _, name := range names {
		p.units[name] += requirements[name]
	}
	return nil
}

// CheckRequirements rejects a task that needs a resource the pool has never
// seen. It only applies to strict pools; lenient pools accept any name and
// report the shortfall at allocation time.
func (p *ResourcePool) CheckRequirements(task Task) error {
	if !p.strict {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range sortedKeys(task.Resources) {
		if task.Resources[name] <= 0 {
			continue
		}
		if _, known := p.units[name]; !known {
			return &ValidationError{Task: task.Name, Field: "resources." + name, Reason: "names a resource the pool does not have"}
		}
	}
	return nil
}

// Strict reports whether the pool was built with WithStrictResources.
func (p *ResourcePool) Strict() bool { return p.strict }

// ReleaseAllocation returns exactly the units an Allocate call granted.
func (p *ResourcePool) ReleaseAllocation(a Allocation) {
	if len(a.Granted) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, count := range a.Granted {
		p.units[name] += count
	}
}

// Available returns the current count for name and whether it is known.
func (p *ResourcePool) Available(name string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	count, ok := p.units[name]
	return count, ok
}

// Snapshot returns a copy of the current counts.
func (p *ResourcePool) Snapshot() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := make(map[string]int, len(p.units))
	for name, count := range p.units {
		snap[name] = count
	}
	return snap
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
