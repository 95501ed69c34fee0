/*
Package module provides the module catalog: manifest parsing and
validation, the registry, dependency resolution, conflict detection and
version constraints, plus discovery and watching of module directories.

A module is described by a manifest.yaml:

	id: python_advanced
	version: 1.2.0
	type: knowledge
	metadata:
	  name: Advanced Python
	  size_tokens: 3000
	dependencies:
	  - python_core>=1.0.0
	conflicts:
	  - python_legacy
	triggers:
	  keywords: [python, asyncio]
	content:
	  files: [content/patterns.md]

Invariants:
  - Every dependency of a catalogued record resolves in the catalog.
    Only RegisterAll can insert records that depend on each other, which
    is the only way a cycle can enter; GetDependencies reports it as a
    *CircularDependencyError.
  - Readers always receive copies of records. Status, tier and usage are
    changed only through SetState, SetTier and RecordUsage.
  - GetDependencies holds the read lock for the whole traversal.

Usage:

	registry := module.NewRegistry(logger, bus)
	manifests, _ := module.NewDiscovery(logger).Discover(modulesDir)
	registry.RegisterDiscovered(manifests)

	order, err := registry.GetDependencies("python_advanced")
	if errors.Is(err, module.ErrCircularDependency) {
		// ...
	}
*/
package module
