package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// Policy decides the order in which a pending batch is attempted.
// Order must return a permutation of pending and must not modify it.
type Policy interface {
	Kind() PolicyKind
	Order(pending []Task) []Task
}

// PolicyKind tags the closed set of built-in policies.
type PolicyKind int

const (
	PolicyPriority        PolicyKind = iota // Priority descending, insertion order on ties
	PolicyShortestFirst                     // Duration ascending, insertion order on ties
	PolicyDependencyFirst                   // Prerequisites first, priority among ready tasks
)

var allPolicyKinds = []PolicyKind{PolicyPriority, PolicyShortestFirst, PolicyDependencyFirst}

// String returns the name accepted by ParsePolicy.
func (k PolicyKind) String() string {
	switch k {
	case PolicyPriority:
		return "PRIORITY"
	case PolicyShortestFirst:
		return "SHORTEST"
	case PolicyDependencyFirst:
		return "DEPENDENCY"
	}
	return fmt.Sprintf("PolicyKind(%d)", int(k))
}

// DisplayName is the human-readable label used in reports.
func (k PolicyKind) DisplayName() string {
	switch k {
	case PolicyPriority:
		return "Priority Scheduling"
	case PolicyShortestFirst:
		return "Shortest Duration First"
	case PolicyDependencyFirst:
		return "Dependency-First Scheduling"
	}
	return k.String()
}

// Description is a one-line summary for help output.
func (k PolicyKind) Description() string {
	switch k {
	case PolicyPriority:
		return "highest priority first; equal priorities keep insertion order"
	case PolicyShortestFirst:
		return "shortest duration first; equal durations keep insertion order"
	case PolicyDependencyFirst:
		return "prerequisites before dependents; highest priority among ready tasks"
	}
	return ""
}

// Policy returns the strategy for k.
func (k PolicyKind) Policy() Policy {
	switch k {
	case PolicyPriority:
		return priorityPolicy{}
	case PolicyShortestFirst:
		return shortestFirstPolicy{}
	case PolicyDependencyFirst:
		return dependencyFirstPolicy{}
	}
	return nil
}

// ParsePolicy resolves a policy name, ignoring case and surrounding space.
func ParsePolicy(name string) (Policy, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, k := range allPolicyKinds {
		if k.String() == want {
			return k.Policy(), nil
		}
	}
	return nil, &UnknownPolicyError{Name: name}
}

// Policies returns every built-in policy in declaration order.
func Policies() []Policy {
	out := make([]Policy, 0, len(allPolicyKinds))
	for _, k := range allPolicyKinds {
		out = append(out, k.Policy())
	}
	return out
}

func policyNames() string {
	names := make([]string, 0, len(allPolicyKinds))
	for _, k := range allPolicyKinds {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}

type priorityPolicy struct{}

func (priorityPolicy) Kind() PolicyKind { return PolicyPriority }

func (priorityPolicy) Order(pending []Task) []Task {
	return byPriority(pending)
}

type shortestFirstPolicy struct{}

func (shortestFirstPolicy) Kind() PolicyKind { return PolicyShortestFirst }

func (shortestFirstPolicy) Order(pending []Task) []Task {
	ordered := append([]Task(nil), pending...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Duration < ordered[j].Duration
	})
	return ordered
}

type dependencyFirstPolicy struct{}

func (dependencyFirstPolicy) Kind() PolicyKind { return PolicyDependencyFirst }

// Order repeatedly picks the highest-priority task whose in-batch
// prerequisites are already placed. Tasks that can never be placed (cycles,
// or dependencies outside the batch) go last in priority order.
func (dependencyFirstPolicy) Order(pending []Task) []Task {
	ranked := byPriority(pending)
	inBatch := make(NameSet, len(ranked))
	for _, t := range ranked {
		inBatch[t.Name] = struct{}{}
	}

	placed := make(NameSet, len(ranked))
	used := make([]bool, len(ranked))
	ordered := make([]Task, 0, len(ranked))

	for progress := true; progress; {
		progress = false
		for i, t := range ranked {
			if used[i] || !placeable(t, inBatch, placed) {
				continue
			}
			ordered = append(ordered, t)
			placed[t.Name] = struct{}{}
			used[i] = true
			progress = true
			break
		}
	}

	for i, t := range ranked {
		if !used[i] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

func placeable(t Task, inBatch, placed NameSet) bool {
	for _, dep := range t.Dependencies {
		if !inBatch.Has(dep) || !placed.Has(dep) {
			return false
		}
	}
	return true
}

func byPriority(pending []Task) []Task {
	ordered := append([]Task(nil), pending...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return ordered
}
