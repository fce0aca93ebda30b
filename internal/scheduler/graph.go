package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gammazero/toposort"
)

// ErrCycle is matched by the error Validate returns for cyclic batches.
var ErrCycle = errors.New("dependency cycle")

// Graph is a read-only dependency view over a batch of tasks. It is used to
// diagnose a batch before it runs; the scheduler itself only consults the
// dependency gate.
type Graph struct {
	tasks      map[string]Task
	order      []string            // insertion order
	dependents map[string][]string // name -> tasks that depend on it
}

// NewGraph builds a graph from tasks. Later duplicates of a name are ignored.
func NewGraph(tasks []Task) *Graph {
	g := &Graph{
		tasks:      make(map[string]Task, len(tasks)),
		dependents: make(map[string][]string),
	}
	for _, t := range tasks {
		if _, exists := g.tasks[t.Name]; exists {
			continue
		}
		g.tasks[t.Name] = t
		g.order = append(g.order, t.Name)
		for _, dep := range t.Dependencies {
			g.dependents[dep] = append(g.dependents[dep], t.Name)
		}
	}
	return g
}

// Dangling maps each task to the dependency names that are not in the batch.
// Such tasks can never run.
func (g *Graph) Dangling() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Dependencies {
			if _, ok := g.tasks[dep]; !ok {
				out[name] = append(out[name], dep)
			}
		}
	}
	return out
}

// Dependents returns the tasks that list name as a dependency.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// Validate topologically sorts the in-batch edges with gammazero/toposort.
// It returns a dependency-respecting order, or an error wrapping ErrCycle if
// the batch contains a cycle. Dangling dependencies are not an error here;
// see Dangling.
func (g *Graph) Validate() ([]string, error) {
	var edges []toposort.Edge
	for _, name := range g.order {
		inBatch := 0
		for _, dep := range g.tasks[name].Dependencies {
			if _, ok := g.tasks[dep]; !ok {
				continue
			}
			if dep == name {
				return nil, fmt.Errorf("%w: task %q depends on itself", ErrCycle, name)
			}
			// Edge (dep, name) means dep must come before name.
			edges = append(edges, toposort.Edge{dep, name})
			inBatch++
		}
		if inBatch == 0 {
			// Roots need a nil edge so they appear in the result.
			edges = append(edges, toposort.Edge{nil, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (involving %s)", ErrCycle, err, strings.Join(g.cycleMembers(), ", "))
	}

	order := make([]string, 0, len(sorted))
	seen := make(NameSet, len(sorted))
	for _, v := range sorted {
		name, ok := v.(string)
		if !ok || seen.Has(name) {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}

	// Every task must come out of the sort; anything missing sits on a cycle.
	if len(order) != len(g.order) {
		var missing []string
		for _, name := range g.order {
			if !seen.Has(name) {
				missing = append(missing, name)
			}
		}
		return nil, fmt.Errorf("%w: %d tasks unreachable: %s", ErrCycle, len(missing), strings.Join(missing, ", "))
	}
	return order, nil
}

// cycleMembers returns the tasks left over after repeatedly removing tasks
// with no unresolved in-batch dependencies. What remains is on or behind a cycle.
func (g *Graph) cycleMembers() []string {
	resolved := make(NameSet, len(g.order))
	for progress := true; progress; {
		progress = false
		for _, name := range g.order {
			if resolved.Has(name) {
				continue
			}
			ready := true
			for _, dep := range g.tasks[name].Dependencies {
				if _, inBatch := g.tasks[dep]; inBatch && !resolved.Has(dep) {
					ready = false
					break
				}
			}
			if ready {
				resolved[name] = struct{}{}
				progress = true
			}
		}
	}

	var members []string
	for _, name := range g.order {
		if !resolved.Has(name) {
			members = append(members, name)
		}
	}
	sort.Strings(members)
	return members
}

// Diagnostics summarizes everything that will keep tasks from running.
type Diagnostics struct {
	Dangling map[string][]string
	Cycle    error
}

// OK reports whether every task in the batch can run.
func (d Diagnostics) OK() bool {
	return len(d.Dangling) == 0 && d.Cycle == nil
}

// Diagnose runs both checks.
func (g *Graph) Diagnose() Diagnostics {
	_, err := g.Validate()
	return Diagnostics{Dangling: g.Dangling(), Cycle: err}
}
