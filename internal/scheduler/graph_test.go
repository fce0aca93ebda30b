package scheduler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// TestGraphValidate tests cycle detection over various batch shapes.
func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name        string
		tasks       []Task
		wantErr     bool
		errContains string
		wantLen     int
	}{
		{
			name: "valid linear chain",
			tasks: []Task{
				{Name: "A"},
				{Name: "B", Dependencies: []string{"A"}},
				{Name: "C", Dependencies: []string{"B"}},
			},
			wantLen: 3,
		},
		{
			name: "valid diamond",
			tasks: []Task{
				{Name: "A"},
				{Name: "B", Dependencies: []string{"A"}},
				{Name: "C", Dependencies: []string{"A"}},
				{Name: "D", Dependencies: []string{"B", "C"}},
			},
			wantLen: 4,
		},
		{
			name: "disconnected components",
			tasks: []Task{
				{Name: "A"},
				{Name: "B", Dependencies: []string{"A"}},
				{Name: "C"},
				{Name: "D", Dependencies: []string{"C"}},
			},
			wantLen: 4,
		},
		{
			name: "dangling dependency is not a cycle",
			tasks: []Task{
				{Name: "D", Dependencies: []string{"Z"}},
			},
			wantLen: 1,
		},
		{
			name: "direct cycle",
			tasks: []Task{
				{Name: "A", Dependencies: []string{"B"}},
				{Name: "B", Dependencies: []string{"A"}},
			},
			wantErr:     true,
			errContains: "A, B",
		},
		{
			name: "transitive cycle",
			tasks: []Task{
				{Name: "A", Dependencies: []string{"B"}},
				{Name: "B", Dependencies: []string{"C"}},
				{Name: "C", Dependencies: []string{"A"}},
			},
			wantErr:     true,
			errContains: "cycle",
		},
		{
			name: "self-loop",
			tasks: []Task{
				{Name: "A", Dependencies: []string{"A"}},
			},
			wantErr:     true,
			errContains: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := NewGraph(tt.tasks).Validate()

			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrCycle) {
					t.Errorf("expected ErrCycle, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q doesn't contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if len(order) != tt.wantLen {
				t.Fatalf("order = %v, want %d tasks", order, tt.wantLen)
			}
			pos := make(map[string]int, len(order))
			for i, name := range order {
				pos[name] = i
			}
			for _, task := range tt.tasks {
				for _, dep := range task.Dependencies {
					if p, ok := pos[dep]; ok && p > pos[task.Name] {
						t.Errorf("%s ordered before its dependency %s: %v", task.Name, dep, order)
					}
				}
			}
		})
	}
}

func TestGraphDanglingAndDependents(t *testing.T) {
	g := NewGraph([]Task{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A", "missing"}},
		{Name: "C", Dependencies: []string{"A"}},
		{Name: "C", Dependencies: []string{"ignored"}},
	})

	want := map[string][]string{"B": {"missing"}}
	if got := g.Dangling(); !reflect.DeepEqual(got, want) {
		t.Errorf("Dangling() = %v, want %v", got, want)
	}
	if got := g.Dependents("A"); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("Dependents(A) = %v", got)
	}

	d := g.Diagnose()
	if d.OK() {
		t.Error("Diagnose().OK() should be false with a dangling dependency")
	}
	if d.Cycle != nil {
		t.Errorf("unexpected cycle: %v", d.Cycle)
	}
}
