package module

import (
	"fmt"
)

// dfsFrame is one entry of the explicit traversal stack: the module and
// the index of the next dependency to visit.
type dfsFrame struct {
	id   string
	next int
}

// GetDependencies returns the transitive dependencies of id in load order
// (dependencies before dependents), excluding id itself. The order is
// deterministic: declared dependency order, depth first.
//
// The read lock is held for the whole traversal so that registrations
// cannot be observed half way.
func (r *Registry) GetDependencies(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.records[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	stack := []dfsFrame{{id: id}}
	onPath := map[string]bool{id: true}
	done := make(map[string]bool)
	var order []string

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		record, ok := r.records[top.id]
		if !ok {
			parent := stack[len(stack)-2].id
			return nil, fmt.Errorf("%w: %s requires missing dependency %s", ErrModuleNotFound, parent, top.id)
		}

		if top.next < len(record.Dependencies) {
			depID := record.Dependencies[top.next]
			top.next++

			if done[depID] {
				continue
			}
			if onPath[depID] {
				return nil, &CircularDependencyError{Cycle: cyclePath(stack, depID)}
			}
			onPath[depID] = true
			stack = append(stack, dfsFrame{id: depID})
			continue
		}

		onPath[top.id] = false
		done[top.id] = true
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}

	// The root finishes last.
	return order[:len(order)-1], nil
}

// cyclePath returns the stack from the first occurrence of repeated,
// closed with repeated again (A -> B -> C -> A).
func cyclePath(stack []dfsFrame, repeated string) []string {
	start := 0
	for i, f := range stack {
		if f.id == repeated {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		cycle = append(cycle, f.id)
	}
	return append(cycle, repeated)
}

// CheckConflicts compares the conflicts declared by id against every
// loaded module, and the conflicts declared by loaded modules against id.
func (r *Registry) CheckConflicts(id string) ([]ConflictReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidate, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	var reports []ConflictReport
	for _, otherID := range r.order {
		other := r.records[otherID]
		if otherID == id || other.Status != StatusLoaded {
			continue
		}

		for _, c := range candidate.Conflicts {
			if c.ModuleID != otherID {
				continue
			}
			matches, err := VersionCompatible(other.Version, c.Constraint)
			if err != nil {
				return nil, err
			}
			if matches {
				reports = append(reports, ConflictReport{
					ModuleID:      id,
					ConflictsWith: otherID,
					LoadedVersion: other.Version,
					Constraint:    c.Constraint,
					Reason:        "declared_conflict",
				})
			}
		}

		for _, c := range other.Conflicts {
			if c.ModuleID != id {
				continue
			}
			matches, err := VersionCompatible(candidate.Version, c.Constraint)
			if err != nil {
				return nil, err
			}
			if matches {
				reports = append(reports, ConflictReport{
					ModuleID:      id,
					ConflictsWith: otherID,
					LoadedVersion: other.Version,
					Constraint:    c.Constraint,
					Reason:        "conflicted_by_loaded",
				})
			}
		}
	}

	return reports, nil
}
