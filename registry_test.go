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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisfinance/paysync/model"
)

func TestRegistryExpiresOldEntries(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	now := time.Now()
	fresh := now.Add(-44 * 24 * time.Hour)
	stale := now.Add(-46 * 24 * time.Hour)
	err := store.SaveProcessedFiles(ctx, model.CategorySettlement, []model.ProcessedFile{
		{Name: "stale.csv", ImportedAt: &stale},
		{Name: "fresh.csv", ImportedAt: &fresh},
	})
	require.NoError(t, err)

	reg, err := loadRegistryAt(ctx, store, model.CategorySettlement, func() time.Time { return now })
	require.NoError(t, err)

	assert.False(t, reg.Contains("stale.csv"))
	assert.True(t, reg.Contains("fresh.csv"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryKeepsUndatedEntries(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	err := store.SaveProcessedFiles(ctx, model.CategoryRelease, []model.ProcessedFile{
		{Name: "legacy.csv"},
	})
	require.NoError(t, err)

	reg, err := loadRegistryAt(ctx, store, model.CategoryRelease, time.Now)
	require.NoError(t, err)
	assert.True(t, reg.Contains("legacy.csv"))
}

func TestRegistryPersistCapsEntries(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	reg, err := loadRegistryAt(ctx, store, model.CategorySettlement, time.Now)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		reg.Add(fmt.Sprintf("report-%03d.csv", i))
	}
	require.NoError(t, reg.Persist(ctx))

	persisted, err := store.ProcessedFiles(ctx, model.CategorySettlement)
	require.NoError(t, err)
	require.Len(t, persisted, registryMaxEntries)

	// the oldest entries were dropped, the newest survived
	assert.Equal(t, "report-050.csv", persisted[0].Name)
	assert.Equal(t, "report-299.csv", persisted[len(persisted)-1].Name)
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)

	reg, err := loadRegistryAt(context.Background(), store, model.CategorySettlement, time.Now)
	require.NoError(t, err)

	reg.Add("a.csv")
	reg.Add("a.csv")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySurvivesCorruptState(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	key := categoryKey(model.CategorySettlement, "processed_files")
	require.NoError(t, ds.SetSetting(ctx, key, "{not json"))

	reg, err := loadRegistryAt(ctx, store, model.CategorySettlement, time.Now)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}
