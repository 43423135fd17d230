package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]ImportKind)
	families   = make(map[string]CodeFamily)
	entities   = make(map[EntityKind]EntityDef)
	registryMu sync.RWMutex
)

// RegisterFamily adds a code family to the registry.
// Panics if the family is malformed or already registered.
func RegisterFamily(f CodeFamily) {
	if err := f.validate(); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := families[f.Name]; exists {
		panic(fmt.Sprintf("code family already registered: %s", f.Name))
	}
	families[f.Name] = f
}

// Register adds an import kind to the registry.
// Panics if a kind with the same key is already registered or if the kind
// references an unknown family or columns missing from its schema.
func Register(kind ImportKind) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[kind.Key]; exists {
		panic(fmt.Sprintf("import kind already registered: %s", kind.Key))
	}

	// Default DB columns to the CSV header name
	for i := range kind.Columns {
		if kind.Columns[i].DBColumn == "" {
			kind.Columns[i].DBColumn = kind.Columns[i].Name
		}
	}

	if kind.Family != "" {
		f, ok := families[kind.Family]
		if !ok {
			panic(fmt.Sprintf("import kind %s: unknown code family %s", kind.Key, kind.Family))
		}
		if f.Kind != kind.Entity.Kind {
			panic(fmt.Sprintf("import kind %s: family %s belongs to %s", kind.Key, f.Name, f.Kind))
		}
		if _, ok := kind.Columns.ByDBColumn(kind.Entity.CodeColumn); !ok {
			panic(fmt.Sprintf("import kind %s: code column %s not in schema", kind.Key, kind.Entity.CodeColumn))
		}
	}
	if kind.Entity.NaturalKeyColumn != "" {
		if _, ok := kind.Columns.ByDBColumn(kind.Entity.NaturalKeyColumn); !ok {
			panic(fmt.Sprintf("import kind %s: natural key %s not in schema", kind.Key, kind.Entity.NaturalKeyColumn))
		}
	}

	registry[kind.Key] = kind
	entities[kind.Entity.Kind] = kind.Entity
}

// Get returns an import kind by key.
// Returns false if not found.
func Get(key string) (ImportKind, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kind, ok := registry[key]
	return kind, ok
}

// All returns all registered import kinds sorted by key.
func All() []ImportKind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ImportKind, 0, len(registry))
	for _, kind := range registry {
		result = append(result, kind)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Family returns a code family by name.
func Family(name string) (CodeFamily, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := families[name]
	return f, ok
}

// Families returns all registered code families sorted by name.
func Families() []CodeFamily {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]CodeFamily, 0, len(families))
	for _, f := range families {
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// Entity returns the table mapping for an entity kind.
// Stores use it to resolve table and column names.
func Entity(kind EntityKind) (EntityDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := entities[kind]
	return def, ok
}

// KindCount returns the number of registered import kinds.
func KindCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered kinds and families.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ImportKind)
	families = make(map[string]CodeFamily)
	entities = make(map[EntityKind]EntityDef)
}
