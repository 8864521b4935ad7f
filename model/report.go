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
package model

import (
	"strings"
	"time"
)

// ReportCategory identifies which class of financial report is being synced.
// Each category keeps an independent cooldown, processed-file registry and
// "last processed" watermark.
type ReportCategory string

const (
	CategoryRelease    ReportCategory = "release"
	CategorySettlement ReportCategory = "settlement"

	// CategoryWebhook is a synthetic registry namespace for files that
	// arrive via push notification rather than the report catalog.
	CategoryWebhook ReportCategory = "webhook"
)

// Categories returns the catalog-backed report categories, in no particular
// order. CategoryWebhook is deliberately excluded: it never appears in the
// provider listing.
func Categories() []ReportCategory {
	return []ReportCategory{CategoryRelease, CategorySettlement}
}

// readyStatuses is the vocabulary of provider statuses that mean a report's
// data is fully generated and downloadable. The provider's status field is
// free text, so matching is case-insensitive.
var readyStatuses = []string{"ready", "generated", "available", "finished", "success"}

// RemoteReport describes one report known to the provider. It is fetched
// fresh on every list call and never persisted verbatim.
type RemoteReport struct {
	BeginDate time.Time `json:"begin_date"`
	EndDate   time.Time `json:"end_date"`
	FileName  string    `json:"file_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Ready reports whether the remote report is fully generated and carries a
// downloadable file name.
func (r RemoteReport) Ready() bool {
	if r.FileName == "" {
		return false
	}
	status := strings.ToLower(strings.TrimSpace(r.Status))
	for _, s := range readyStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Covers reports whether the report's half-open [BeginDate, EndDate) range
// contains the given instant.
func (r RemoteReport) Covers(t time.Time) bool {
	return !t.Before(r.BeginDate) && t.Before(r.EndDate)
}

// ProcessedFile records one remote report file that was successfully
// imported. ImportedAt is a pointer for backward compatibility with older
// persisted shapes that carried only the name; entries without a timestamp
// never expire.
type ProcessedFile struct {
	Name       string     `json:"name"`
	ImportedAt *time.Time `json:"imported_at,omitempty"`
}

// WebhookFile is one file descriptor delivered by a push notification.
// Files arrive as a direct download URL rather than a catalog file name.
type WebhookFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Url  string `json:"url"`
}

// ImportStats holds the row-level counters returned by the provider client
// for one imported file, and doubles as the aggregate across a whole run.
type ImportStats struct {
	TotalRows     int `json:"total_rows"`
	ValidRows     int `json:"valid_rows"`
	InsertedRows  int `json:"inserted_rows"`
	DuplicateRows int `json:"duplicate_rows"`
	SkippedRows   int `json:"skipped_rows"`
	ErrorCount    int `json:"error_count"`
}

// Add accumulates another file's counters field-wise.
func (s *ImportStats) Add(other ImportStats) {
	s.TotalRows += other.TotalRows
	s.ValidRows += other.ValidRows
	s.InsertedRows += other.InsertedRows
	s.DuplicateRows += other.DuplicateRows
	s.SkippedRows += other.SkippedRows
	s.ErrorCount += other.ErrorCount
}
