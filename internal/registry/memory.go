// Package registry provides the predatory-journal reference registry
// and the matcher that checks extracted metadata against it.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// MemoryRegistry is an in-memory snapshot of registry entries with
// indexed lookups. Lookups are read-only and safe for concurrent use;
// Reload swaps the snapshot atomically under a write lock.
type MemoryRegistry struct {
	mu          sync.RWMutex
	generation  uint64
	entries     []*domain.RegistryEntry
	byISSN      map[string]*domain.RegistryEntry
	byName      map[string]*domain.RegistryEntry
	byNameLower map[string]*domain.RegistryEntry
}

// NewMemoryRegistry creates a registry snapshot from the given entries.
func NewMemoryRegistry(entries []*domain.RegistryEntry) *MemoryRegistry {
	r := &MemoryRegistry{}
	r.Reload(entries)
	return r
}

// Reload replaces the snapshot with a new set of entries.
func (r *MemoryRegistry) Reload(entries []*domain.RegistryEntry) {
	byISSN := make(map[string]*domain.RegistryEntry, len(entries))
	byName := make(map[string]*domain.RegistryEntry, len(entries))
	byNameLower := make(map[string]*domain.RegistryEntry, len(entries))
	for _, e := range entries {
		if e.ISSN != "" {
			byISSN[e.ISSN] = e
		}
		if e.Name != "" {
			byName[e.Name] = e
			byNameLower[strings.ToLower(e.Name)] = e
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.entries = entries
	r.byISSN = byISSN
	r.byName = byName
	r.byNameLower = byNameLower
}

// Generation returns the snapshot stamp, incremented on every Reload.
func (r *MemoryRegistry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Len returns the number of entries in the snapshot.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// LookupByISSN returns the entry with an exactly matching ISSN, or
// nil if none exists.
func (r *MemoryRegistry) LookupByISSN(ctx context.Context, issn string) (*domain.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byISSN[issn], nil
}

// LookupByName returns the entry whose name matches exactly, falling
// back to a case-insensitive match.
func (r *MemoryRegistry) LookupByName(ctx context.Context, name string) (*domain.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byName[name]; ok {
		return e, nil
	}
	return r.byNameLower[strings.ToLower(name)], nil
}

// LookupByPublisher returns the entry whose name matches the
// publisher case-insensitively. Registry entries for publishers carry
// the publisher as their name, so this is a lookup against the name
// index.
func (r *MemoryRegistry) LookupByPublisher(ctx context.Context, publisher string) (*domain.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byNameLower[strings.ToLower(publisher)], nil
}
