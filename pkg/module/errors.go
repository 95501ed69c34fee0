package module

import (
	"errors"
	"strings"
)

var (
	// ErrModuleNotFound is returned when a module id is not in the catalog
	ErrModuleNotFound = errors.New("module not found")

	// ErrAlreadyExists is returned when registering an id that is already catalogued
	ErrAlreadyExists = errors.New("module already exists")

	// ErrCircularDependency is returned when the dependency graph contains a cycle
	ErrCircularDependency = errors.New("circular dependency")

	// ErrVersionConflict is returned when versions or declared conflicts are incompatible
	ErrVersionConflict = errors.New("version conflict")

	// ErrModuleInUse is returned when deregistering a loaded or depended-on module
	ErrModuleInUse = errors.New("module in use")

	// ErrInvalidManifest is returned when a manifest fails validation
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrInvalidConstraint is returned when a version constraint cannot be parsed
	ErrInvalidConstraint = errors.New("invalid version constraint")
)

// CircularDependencyError names the cycle found during traversal
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// ConflictError carries the conflicts that blocked an operation
type ConflictError struct {
	ModuleID  string
	Conflicts []ConflictReport
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return "version conflict: " + strings.Join(parts, "; ")
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
