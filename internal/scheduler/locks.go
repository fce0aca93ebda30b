package scheduler

import (
	"sort"
	"sync"
)

// ResourceLockManager provides per-resource mutual exclusion for tasks that
// run concurrently. Each resource name gets its own mutex, so tasks touching
// disjoint resources proceed in parallel while tasks sharing one serialize.
type ResourceLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for resource, creating it on first use.
func (r *ResourceLockManager) Lock(resource string) {
	r.mu.Lock()
	l, exists := r.locks[resource]
	if !exists {
		l = &sync.Mutex{}
		r.locks[resource] = l
	}
	r.mu.Unlock()

	// Acquired outside the manager lock so waiters don't block unrelated resources.
	l.Lock()
}

// Unlock releases the mutex for resource.
func (r *ResourceLockManager) Unlock(resource string) {
	r.mu.Lock()
	l, exists := r.locks[resource]
	r.mu.Unlock()

	if exists {
		l.Unlock()
	}
}

// LockTask acquires the locks for every resource the task requires with a
// positive count. Names are taken in sorted order so two tasks can never
// deadlock on each other. It returns the names it locked for UnlockAll.
func (r *ResourceLockManager) LockTask(task Task) []string {
	names := make([]string, 0, len(task.Resources))
	for name, count := range task.Resources {
		if count > 0 {
			names = append(names, name)
		}
	}
	r.LockAll(names)
	return names
}

// LockAll acquires the locks for all names in sorted order.
func (r *ResourceLockManager) LockAll(names []string) {
	if len(names) == 0 {
		return
	}
	for _, name := range sortedCopy(names) {
		r.Lock(name)
	}
}

// UnlockAll releases the locks for all names in reverse sorted order.
func (r *ResourceLockManager) UnlockAll(names []string) {
	if len(names) == 0 {
		return
	}
	sorted := sortedCopy(names)
	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}

func sortedCopy(names []string) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return sorted
}
