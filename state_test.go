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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisfinance/paysync/model"
)

func TestAutoSyncEnabledDefaultsToTrue(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	enabled, err := store.AutoSyncEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled, "unset flag means enabled")

	require.NoError(t, ds.SetSetting(ctx, keyAutoSyncEnabled, "false"))
	enabled, err = store.AutoSyncEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	// anything except the literal "false" keeps syncing on
	require.NoError(t, ds.SetSetting(ctx, keyAutoSyncEnabled, "off"))
	enabled, err = store.AutoSyncEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestWatermarkIsMonotonic(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 9, 6, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	require.NoError(t, store.AdvanceWatermark(ctx, model.CategorySettlement, t2))
	require.NoError(t, store.AdvanceWatermark(ctx, model.CategorySettlement, t1))

	got, err := store.Watermark(ctx, model.CategorySettlement)
	require.NoError(t, err)
	assert.True(t, got.Equal(t2), "a stale advance must not move the watermark backward")
}

func TestWatermarksAreIndependentPerCategory(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 9, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.AdvanceWatermark(ctx, model.CategorySettlement, t1))

	got, err := store.Watermark(ctx, model.CategoryRelease)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPendingWebhookFilesDeduplicateByName(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	files := []model.WebhookFile{
		{Name: "a.csv", Url: "https://cdn.example.com/a.csv"},
	}
	require.NoError(t, store.AppendPendingWebhookFiles(ctx, files))
	require.NoError(t, store.AppendPendingWebhookFiles(ctx, files))
	require.NoError(t, store.AppendPendingWebhookFiles(ctx, []model.WebhookFile{
		{Name: "b.csv", Url: "https://cdn.example.com/b.csv"},
	}))

	pending, err := store.PendingWebhookFiles(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, store.ClearPendingWebhookFiles(ctx))
	pending, err = store.PendingWebhookFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUnparsableTimestampReadsAsZero(t *testing.T) {
	_, ds, _, _ := newTestPaysync()
	store := newStateStore(ds)
	ctx := context.Background()

	key := categoryKey(model.CategorySettlement, "last_processed_at")
	require.NoError(t, ds.SetSetting(ctx, key, "garbage"))

	got, err := store.Watermark(ctx, model.CategorySettlement)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
