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
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/database"
	"github.com/praxisfinance/paysync/model"
)

// Settings keys used by the sync engine. Per-category state is namespaced
// by category name. All values are strings; timestamps are RFC3339.
const (
	keyAutoSyncEnabled     = "paysync:auto_sync_enabled"
	keyLastSuccessfulRun   = "paysync:last_successful_run"
	keyPendingWebhookFiles = "paysync:pending_webhook_files"
	keyAccountPrefix       = "paysync:account:"
)

func categoryKey(category model.ReportCategory, name string) string {
	return fmt.Sprintf("paysync:%s:%s", category, name)
}

// stateStore wraps the generic settings map with typed accessors per
// concern, so nothing else in the engine hand-parses strings. The store
// itself has no transactions; the distributed lock serializes all writers,
// which is the only reason read-modify-write here is safe.
type stateStore struct {
	ds database.IDataSource
}

func newStateStore(ds database.IDataSource) *stateStore {
	return &stateStore{ds: ds}
}

// AutoSyncEnabled reports whether unattended syncing is switched on. An
// unset flag means enabled; only an explicit "false" disables it.
func (s *stateStore) AutoSyncEnabled(ctx context.Context) (bool, error) {
	value, err := s.ds.GetSetting(ctx, keyAutoSyncEnabled)
	if err != nil {
		return false, err
	}
	return value != "false", nil
}

func (s *stateStore) LastGenerateAttempt(ctx context.Context, category model.ReportCategory) (time.Time, error) {
	return s.getTime(ctx, categoryKey(category, "last_generate_attempt_at"))
}

func (s *stateStore) RecordGenerateAttempt(ctx context.Context, category model.ReportCategory, t time.Time) error {
	return s.setTime(ctx, categoryKey(category, "last_generate_attempt_at"), t)
}

func (s *stateStore) LastGenerated(ctx context.Context, category model.ReportCategory) (time.Time, error) {
	return s.getTime(ctx, categoryKey(category, "last_generated_at"))
}

func (s *stateStore) RecordGenerated(ctx context.Context, category model.ReportCategory, t time.Time) error {
	return s.setTime(ctx, categoryKey(category, "last_generated_at"), t)
}

// Watermark returns the lastProcessedAt timestamp of the newest report file
// successfully imported for the category, or the zero time when no file was
// ever imported.
func (s *stateStore) Watermark(ctx context.Context, category model.ReportCategory) (time.Time, error) {
	return s.getTime(ctx, categoryKey(category, "last_processed_at"))
}

// AdvanceWatermark moves the category watermark forward. Moves backward are
// silently ignored so the watermark stays monotonic even if callers race a
// stale value.
func (s *stateStore) AdvanceWatermark(ctx context.Context, category model.ReportCategory, t time.Time) error {
	current, err := s.Watermark(ctx, category)
	if err != nil {
		return err
	}
	if !t.After(current) {
		return nil
	}
	return s.setTime(ctx, categoryKey(category, "last_processed_at"), t)
}

func (s *stateStore) ProcessedFiles(ctx context.Context, category model.ReportCategory) ([]model.ProcessedFile, error) {
	raw, err := s.ds.GetSetting(ctx, categoryKey(category, "processed_files"))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var entries []model.ProcessedFile
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// a corrupt list must not wedge the sync forever; start fresh
		logrus.Errorf("discarding unreadable processed-file list for %s: %v", category, err)
		return nil, nil
	}
	return entries, nil
}

func (s *stateStore) SaveProcessedFiles(ctx context.Context, category model.ReportCategory, entries []model.ProcessedFile) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.ds.SetSetting(ctx, categoryKey(category, "processed_files"), string(raw))
}

func (s *stateStore) PendingWebhookFiles(ctx context.Context) ([]model.WebhookFile, error) {
	raw, err := s.ds.GetSetting(ctx, keyPendingWebhookFiles)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var files []model.WebhookFile
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		logrus.Errorf("discarding unreadable pending webhook list: %v", err)
		return nil, nil
	}
	return files, nil
}

// AppendPendingWebhookFiles adds push-delivered file descriptors to the
// pending queue, dropping descriptors already queued under the same name.
func (s *stateStore) AppendPendingWebhookFiles(ctx context.Context, files []model.WebhookFile) error {
	pending, err := s.PendingWebhookFiles(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(pending))
	for _, f := range pending {
		seen[f.Name] = true
	}
	for _, f := range files {
		if seen[f.Name] {
			continue
		}
		pending = append(pending, f)
		seen[f.Name] = true
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.ds.SetSetting(ctx, keyPendingWebhookFiles, string(raw))
}

func (s *stateStore) ClearPendingWebhookFiles(ctx context.Context) error {
	return s.ds.SetSetting(ctx, keyPendingWebhookFiles, "[]")
}

func (s *stateStore) RecordSuccessfulRun(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyLastSuccessfulRun, t)
}

// ResolveAccount maps an external provider account id to the internal
// channel identifier, returning "" when the account is unknown.
func (s *stateStore) ResolveAccount(ctx context.Context, externalID string) (string, error) {
	return s.ds.GetSetting(ctx, keyAccountPrefix+externalID)
}

func (s *stateStore) getTime(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.ds.GetSetting(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logrus.Warnf("ignoring unparsable timestamp for %s: %q", key, raw)
		return time.Time{}, nil
	}
	return t, nil
}

func (s *stateStore) setTime(ctx context.Context, key string, t time.Time) error {
	return s.ds.SetSetting(ctx, key, t.Format(time.RFC3339))
}
