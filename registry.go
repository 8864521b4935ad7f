/*
Copyright 2025 Praxis Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package paysync

import (
	"context"
	"time"

	"github.com/praxisfinance/paysync/model"
)

const (
	// registryRetention bounds how long an imported file name is remembered.
	registryRetention = 45 * 24 * time.Hour
	// registryMaxEntries caps the persisted list so storage never grows
	// unbounded; only the most recent entries survive a save.
	registryMaxEntries = 250
)

// fileRegistry tracks which remote report files have already been imported
// for one category. It is the authoritative per-file-name existence check;
// the cheaper watermark is consulted first by the import pipeline. An entry
// present here is never re-imported by the same category's sync path.
type fileRegistry struct {
	category model.ReportCategory
	store    *stateStore
	entries  []model.ProcessedFile
	names    map[string]bool
	now      func() time.Time
}

// loadRegistry reads the persisted list for a category and applies the age
// policy: entries older than the retention window are dropped. Entries
// without an imported-at timestamp come from older persisted shapes and are
// kept indefinitely.
func loadRegistry(ctx context.Context, store *stateStore, category model.ReportCategory) (*fileRegistry, error) {
	return loadRegistryAt(ctx, store, category, time.Now)
}

func loadRegistryAt(ctx context.Context, store *stateStore, category model.ReportCategory, now func() time.Time) (*fileRegistry, error) {
	persisted, err := store.ProcessedFiles(ctx, category)
	if err != nil {
		return nil, err
	}

	r := &fileRegistry{
		category: category,
		store:    store,
		names:    make(map[string]bool),
		now:      now,
	}

	cutoff := now().Add(-registryRetention)
	for _, entry := range persisted {
		if entry.ImportedAt != nil && entry.ImportedAt.Before(cutoff) {
			continue
		}
		r.entries = append(r.entries, entry)
		r.names[entry.Name] = true
	}
	return r, nil
}

// Contains reports whether the file name was already imported.
func (r *fileRegistry) Contains(name string) bool {
	return r.names[name]
}

// Add records a freshly imported file. Adding an existing name is a no-op.
func (r *fileRegistry) Add(name string) {
	if r.names[name] {
		return
	}
	importedAt := r.now()
	r.entries = append(r.entries, model.ProcessedFile{Name: name, ImportedAt: &importedAt})
	r.names[name] = true
}

// Len returns the number of live entries.
func (r *fileRegistry) Len() int {
	return len(r.entries)
}

// Persist writes the registry back to the settings store, truncated to the
// most recent entries. The list is kept in import order, so the tail holds
// the newest entries.
func (r *fileRegistry) Persist(ctx context.Context) error {
	entries := r.entries
	if len(entries) > registryMaxEntries {
		entries = entries[len(entries)-registryMaxEntries:]
	}
	return r.store.SaveProcessedFiles(ctx, r.category, entries)
}
