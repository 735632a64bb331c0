// Package store holds the two pieces of durable state: per-feed entry
// fingerprints and the relay webhook registry records.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

type fingerprintBackend interface {
	GetFingerprints(ctx context.Context) (map[string]string, error)
	ReplaceFingerprints(ctx context.Context, fingerprints map[string]string) error
}

// Fingerprints tracks, per feed, the URL of the last entry that triggered a
// notification. Mutations are in-memory; Flush persists the whole map once
// per tick.
type Fingerprints struct {
	backend fingerprintBackend
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]string
}

func NewFingerprints(backend fingerprintBackend, log *slog.Logger) *Fingerprints {
	return &Fingerprints{
		backend: backend,
		log:     log,
		entries: make(map[string]string),
	}
}

// Load reads the persisted map. Unreadable state degrades to an empty map
// so startup never fails on a missing or corrupt store.
func (f *Fingerprints) Load(ctx context.Context) {
	entries, err := f.backend.GetFingerprints(ctx)
	if err != nil {
		f.log.WarnContext(ctx, "Starting with empty fingerprints",
			"error", err)

		entries = make(map[string]string)
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
}

func (f *Fingerprints) Get(feedID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entryURL, ok := f.entries[feedID]

	return entryURL, ok
}

// Set updates the in-memory map only; Flush makes it durable.
func (f *Fingerprints) Set(feedID string, entryURL string) {
	f.mu.Lock()
	f.entries[feedID] = entryURL
	f.mu.Unlock()
}

// Flush atomically replaces the persisted map with the in-memory one.
func (f *Fingerprints) Flush(ctx context.Context) error {
	f.mu.Lock()
	snapshot := maps.Clone(f.entries)
	f.mu.Unlock()

	if err := f.backend.ReplaceFingerprints(ctx, snapshot); err != nil {
		return fmt.Errorf("replace fingerprints: %w", err)
	}

	return nil
}
