package scheduler

// NameSet is a set of task names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// IsSatisfied reports whether every dependency of task is in completed.
// A task with no dependencies is always satisfied.
func IsSatisfied(task Task, completed NameSet) bool {
	for _, dep := range task.Dependencies {
		if !completed.Has(dep) {
			return false
		}
	}
	return true
}

// UnmetDependencies returns the dependencies of task missing from completed,
// in declaration order.
func UnmetDependencies(task Task, completed NameSet) []string {
	var missing []string
	for _, dep := range task.Dependencies {
		if !completed.Has(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}
