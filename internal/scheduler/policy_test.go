package scheduler

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func names(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    PolicyKind
		wantErr bool
	}{
		{"PRIORITY", PolicyPriority, false},
		{"priority", PolicyPriority, false},
		{"  Shortest ", PolicyShortestFirst, false},
		{"dependency", PolicyDependencyFirst, false},
		{"ROUND_ROBIN", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePolicy(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPolicy) {
					t.Fatalf("expected ErrUnknownPolicy, got %v", err)
				}
				var upe *UnknownPolicyError
				if !errors.As(err, &upe) || upe.Name != tt.input {
					t.Errorf("expected UnknownPolicyError naming %q, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", p.Kind(), tt.want)
			}
		})
	}
}

func TestPolicies_CoverEveryKind(t *testing.T) {
	for _, p := range Policies() {
		if p == nil {
			t.Fatal("nil policy in Policies()")
		}
		if got := p.Kind().Policy(); got == nil || got.Kind() != p.Kind() {
			t.Errorf("%v does not round-trip through Policy()", p.Kind())
		}
		if p.Kind().DisplayName() == "" || p.Kind().Description() == "" {
			t.Errorf("%v is missing display text", p.Kind())
		}
	}
	if PolicyKind(99).Policy() != nil {
		t.Error("out-of-range kind should have no policy")
	}
}

func TestPriorityPolicy_StableOnTies(t *testing.T) {
	pending := []Task{
		{Name: "A", Priority: 2},
		{Name: "B", Priority: 5},
		{Name: "C", Priority: 2},
		{Name: "D", Priority: 5},
		{Name: "E", Priority: 1},
	}
	got := names(PolicyPriority.Policy().Order(pending))
	want := []string{"B", "D", "A", "C", "E"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if pending[0].Name != "A" {
		t.Error("Order modified its input")
	}
}

func TestShortestFirstPolicy(t *testing.T) {
	pending := []Task{
		{Name: "long", Duration: 5 * time.Second},
		{Name: "short", Duration: time.Second},
		{Name: "tie", Duration: time.Second},
	}
	got := names(PolicyShortestFirst.Policy().Order(pending))
	want := []string{"short", "tie", "long"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestDependencyFirstPolicy(t *testing.T) {
	tests := []struct {
		name    string
		pending []Task
		want    []string
	}{
		{
			name: "prerequisite outranked by dependent",
			pending: []Task{
				{Name: "Report", Priority: 9, Dependencies: []string{"Collect"}},
				{Name: "Collect", Priority: 1},
				{Name: "Other", Priority: 5},
			},
			want: []string{"Other", "Collect", "Report"},
		},
		{
			name: "priority then dependency scenario",
			pending: []Task{
				{Name: "A", Priority: 1},
				{Name: "B", Priority: 3},
				{Name: "C", Priority: 2, Dependencies: []string{"B"}},
			},
			want: []string{"B", "C", "A"},
		},
		{
			name: "unplaceable tasks go last by priority",
			pending: []Task{
				{Name: "X", Priority: 1, Dependencies: []string{"Y"}},
				{Name: "Y", Priority: 2, Dependencies: []string{"X"}},
				{Name: "D", Priority: 9, Dependencies: []string{"Z"}},
				{Name: "A", Priority: 0},
			},
			want: []string{"A", "D", "Y", "X"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(PolicyDependencyFirst.Policy().Order(tt.pending))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}
