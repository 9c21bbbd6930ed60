package registry

import (
	"context"
	"time"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// SeedEntries returns the built-in registry entries used to bootstrap
// an empty database. Larger curated lists are loaded through the
// registry management endpoints.
func SeedEntries() []*domain.RegistryEntry {
	now := time.Now().UTC()
	return []*domain.RegistryEntry{
		{Name: "Omics International", Publisher: "Omics", Source: "beall", EntityType: domain.EntityPublisher, URL: "https://www.omicsonline.org/", LastUpdated: now},
		{Name: "Waset", Publisher: "Waset", Source: "beall", EntityType: domain.EntityPublisher, URL: "https://waset.org/", LastUpdated: now},
		{Name: "Science Domain International", Publisher: "Science Domain", Source: "beall", EntityType: domain.EntityPublisher, LastUpdated: now},
		{Name: "IOSR Journals", Publisher: "IOSR", Source: "beall", EntityType: domain.EntityPublisher, LastUpdated: now},
		{Name: "Fake Predatory Journal", ISSN: "1234-5678", Source: "test", EntityType: domain.EntityJournal, URL: "http://fake.com", LastUpdated: now},
	}
}

// Updater persists registry entries and refreshes the in-memory
// snapshot that lookups are served from.
type Updater struct {
	repo     domain.Repository
	snapshot *MemoryRegistry
}

// NewUpdater creates an updater over the given repository and
// snapshot.
func NewUpdater(repo domain.Repository, snapshot *MemoryRegistry) *Updater {
	return &Updater{repo: repo, snapshot: snapshot}
}

// Seed upserts the built-in entries and reloads the snapshot.
// Returns the number of entries written.
func (u *Updater) Seed(ctx context.Context) (int, error) {
	return u.Update(ctx, SeedEntries())
}

// Update upserts the given entries and reloads the snapshot from the
// repository so lookups reflect the new state.
func (u *Updater) Update(ctx context.Context, entries []*domain.RegistryEntry) (int, error) {
	count := 0
	for _, e := range entries {
		if err := u.repo.SaveRegistryEntry(ctx, e); err != nil {
			return count, err
		}
		count++
	}
	if err := u.Refresh(ctx); err != nil {
		return count, err
	}
	return count, nil
}

// Generation returns the snapshot generation. It advances on every
// registry write, so analyses cached against an older snapshot stop
// being served once an entry is added or reloaded.
func (u *Updater) Generation() uint64 {
	return u.snapshot.Generation()
}

// Refresh reloads the snapshot from the repository.
func (u *Updater) Refresh(ctx context.Context) error {
	entries, err := u.repo.ListRegistryEntries(ctx)
	if err != nil {
		return err
	}
	u.snapshot.Reload(entries)
	return nil
}
