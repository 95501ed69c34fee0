/*
Package loader manages the working set of loaded modules within the hot
tier token budget.

Load resolves the dependency chain through the registry, checks conflicts
and then promotes each missing member into the hot tier, dependencies
first. When the hot tier is short of space the eviction policy picks
victims among loaded modules that are outside the chain, not loaded at a
higher priority than the request, and not required by another loaded
module. Victims are demoted to the warm tier.

Invariants:
  - The tokens held by the hot tier never exceed its capacity. All
    load, unload, evict, optimize and archive sequences run under one
    mutex.
  - Events are queued while the mutex is held and emitted after it is
    released, so event handlers may call Load or Unload.
  - A failed load keeps the dependencies it already loaded.

Usage:

	l := loader.New(logger, registry, store, bus, loader.Config{})
	result, err := l.Load("python_advanced", loader.PriorityNormal)
	if errors.Is(err, loader.ErrInsufficientMemory) {
		// ...
	}
	usage := l.GetMemoryUsage()
*/
package loader
