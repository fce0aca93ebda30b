package scheduler

import (
	"errors"
	"testing"
)

func mustPool(t *testing.T, seed map[string]int, opts ...PoolOption) *ResourcePool {
	t.Helper()
	p, err := NewResourcePool(seed, opts...)
	if err != nil {
		t.Fatalf("NewResourcePool: %v", err)
	}
	return p
}

func TestNewResourcePool_RejectsBadSeed(t *testing.T) {
	tests := []struct {
		name string
		seed map[string]int
	}{
		{"negative count", map[string]int{"rooms": -1}},
		{"empty name", map[string]int{"": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResourcePool(tt.seed)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestResourcePool_Allocate(t *testing.T) {
	tests := []struct {
		name          string
		seed          map[string]int
		request       map[string]int
		wantAfter     map[string]int
		wantGranted   map[string]int
		wantShortfall []Shortfall
	}{
		{
			name:        "enough units",
			seed:        map[string]int{"staff": 2, "rooms": 1},
			request:     map[string]int{"staff": 1, "rooms": 1},
			wantAfter:   map[string]int{"staff": 1, "rooms": 0},
			wantGranted: map[string]int{"staff": 1, "rooms": 1},
		},
		{
			name:          "insufficient units leaves count alone",
			seed:          map[string]int{"rooms": 0},
			request:       map[string]int{"rooms": 1},
			wantAfter:     map[string]int{"rooms": 0},
			wantGranted:   map[string]int{},
			wantShortfall: []Shortfall{{Resource: "rooms", Requested: 1, Available: 0, Known: true}},
		},
		{
			name:          "unknown resource",
			seed:          map[string]int{"staff": 1},
			request:       map[string]int{"computers": 1, "staff": 1},
			wantAfter:     map[string]int{"staff": 0},
			wantGranted:   map[string]int{"staff": 1},
			wantShortfall: []Shortfall{{Resource: "computers", Requested: 1, Known: false}},
		},
		{
			name:        "zero count is ignored",
			seed:        map[string]int{},
			request:     map[string]int{"rooms": 0},
			wantAfter:   map[string]int{},
			wantGranted: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPool(t, tt.seed)
			alloc := p.Allocate(tt.request)

			if got := p.Snapshot(); !equalCounts(got, tt.wantAfter) {
				t.Errorf("pool after = %v, want %v", got, tt.wantAfter)
			}
			if !equalCounts(alloc.Granted, tt.wantGranted) {
				t.Errorf("granted = %v, want %v", alloc.Granted, tt.wantGranted)
			}
			if len(alloc.Shortfalls) != len(tt.wantShortfall) {
				t.Fatalf("shortfalls = %v, want %v", alloc.Shortfalls, tt.wantShortfall)
			}
			for i := range alloc.Shortfalls {
				if alloc.Shortfalls[i] != tt.wantShortfall[i] {
					t.Errorf("shortfall[%d] = %+v, want %+v", i, alloc.Shortfalls[i], tt.wantShortfall[i])
				}
			}
			if alloc.Full() != (len(tt.wantShortfall) == 0) {
				t.Errorf("Full() = %v", alloc.Full())
			}
		})
	}
}

func TestResourcePool_ReleaseCreatesUnknown(t *testing.T) {
	p := mustPool(t, map[string]int{"staff": 1})

	if err := p.Release(map[string]int{"computers": 2, "staff": 1}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, ok := p.Available("computers"); !ok || got != 2 {
		t.Errorf("computers = %d (known %v), want 2", got, ok)
	}
	if got, _ := p.Available("staff"); got != 2 {
		t.Errorf("staff = %d, want 2", got)
	}
}

func TestResourcePool_StrictReleaseRejectsUnknown(t *testing.T) {
	p := mustPool(t, map[string]int{"staff": 1}, WithStrictResources())

	err := p.Release(map[string]int{"computers": 2, "staff": 1})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, ok := p.Available("computers"); ok {
		t.Error("strict release must not create unknown resources")
	}
	if got, _ := p.Available("staff"); got != 1 {
		t.Errorf("staff = %d, want 1 (nothing released on error)", got)
	}
}

func TestResourcePool_CheckRequirements(t *testing.T) {
	task := Task{Name: "Exam", Resources: map[string]int{"staff": 1, "ghost": 2, "rooms": 0}}

	lenient := mustPool(t, map[string]int{"staff": 1})
	if err := lenient.CheckRequirements(task); err != nil {
		t.Errorf("lenient pool rejected task: %v", err)
	}
	if lenient.Strict() {
		t.Error("default pool should not be strict")
	}

	strict := mustPool(t, map[string]int{"staff": 1}, WithStrictResources())
	err := strict.CheckRequirements(task)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Task != "Exam" || verr.Field != "resources.ghost" {
		t.Errorf("error = %+v, want Exam resources.ghost", verr)
	}

	// Zero-unit requirements never touch the pool.
	if err := strict.CheckRequirements(Task{Name: "Idle", Resources: map[string]int{"rooms": 0}}); err != nil {
		t.Errorf("zero-unit requirement rejected: %v", err)
	}
}

func TestResourcePool_ReleaseNegative(t *testing.T) {
	p := mustPool(t, map[string]int{"staff": 1})
	if err := p.Release(map[string]int{"staff": -1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResourcePool_ReleaseAllocationConserves(t *testing.T) {
	seed := map[string]int{"staff": 1, "rooms": 0}
	p := mustPool(t, seed)

	alloc := p.Allocate(map[string]int{"staff": 1, "rooms": 1, "computers": 3})
	p.ReleaseAllocation(alloc)

	if got := p.Snapshot(); !equalCounts(got, seed) {
		t.Errorf("pool after release = %v, want %v", got, seed)
	}
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
