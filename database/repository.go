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

package database

import (
	"context"

	"github.com/praxisfinance/paysync/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	settings   // Interface for key-value settings operations
	syncRun    // Interface for the run audit log
	settlement // Interface for settlement line-item storage
}

// settings defines the durable key→string map used as the persistence
// primitive for the sync engine's state. There are no transactions or
// locking semantics here; the distributed lock serializes all writers.
type settings interface {
	GetSetting(ctx context.Context, key string) (string, error) // Returns "" when the key is unset
	SetSetting(ctx context.Context, key, value string) error    // Upserts the key
}

// syncRun defines the audit log operations. A record is created provisional
// at run start and finalized exactly once at run end.
type syncRun interface {
	CreateSyncRun(ctx context.Context, run *model.SyncRun) error
	FinalizeSyncRun(ctx context.Context, runID string, result model.SyncRunResult) error
	GetSyncRun(ctx context.Context, runID string) (*model.SyncRun, error)
	GetAllSyncRuns(ctx context.Context, limit, offset int) ([]model.SyncRun, error)
}

// settlement defines storage for imported report line items.
type settlement interface {
	InsertSettlementRow(ctx context.Context, row *model.SettlementRow) (bool, error) // Returns false on duplicate (category, reference)
}
