package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/cortex/pkg/storage"
)

var (
	// ErrNotLoaded is returned when unloading a module that is not loaded
	ErrNotLoaded = errors.New("module not loaded")

	// ErrHasDependents is returned when a non-forced unload would strand loaded dependents
	ErrHasDependents = errors.New("module has loaded dependents")

	// ErrInsufficientMemory is returned when eviction cannot free enough hot tier space
	ErrInsufficientMemory = storage.ErrInsufficientMemory
)

// HasDependentsError names the loaded modules that block an unload
type HasDependentsError struct {
	ModuleID   string
	Dependents []string
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("module %s has loaded dependents: %s", e.ModuleID, strings.Join(e.Dependents, ", "))
}

func (e *HasDependentsError) Is(target error) bool {
	return target == ErrHasDependents
}
