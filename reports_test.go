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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// withFakeClock pins the engine to a controllable clock; sleeps advance the
// clock instead of blocking.
func withFakeClock(p *Paysync, start time.Time) *fakeClock {
	clock := &fakeClock{t: start}
	p.now = clock.Now
	p.sleep = func(_ context.Context, d time.Duration) { clock.Advance(d) }
	return clock
}

func yesterdayRange(now time.Time) (time.Time, time.Time) {
	y := now.UTC().AddDate(0, 0, -1)
	begin := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	return begin, begin.AddDate(0, 0, 1)
}

func TestTargetReportDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 10, 2, 15, 0, 0, loc)
	target := targetReportDate(now, loc)
	assert.Equal(t, time.Date(2025, 3, 9, 12, 0, 0, 0, loc), target)
}

func TestEnsureSkipsWhenReadyReportExists(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()

	begin, end := yesterdayRange(start)
	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		return []model.RemoteReport{
			{BeginDate: begin, EndDate: end, FileName: "settlement-0309.csv", Status: "READY", CreatedAt: begin},
		}, nil
	}

	err := p.ensureCategoryReport(context.Background(), cfg, model.CategorySettlement)
	require.NoError(t, err)
	assert.Empty(t, provider.createdRanges, "no creation when a ready report covers the target")
}

func TestEnsureCreatesMissingReport(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()

	begin, end := yesterdayRange(start)
	var created bool
	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		if !created {
			return nil, nil
		}
		return []model.RemoteReport{
			{BeginDate: begin, EndDate: end, FileName: "settlement-0309.csv", Status: "generated", CreatedAt: begin},
		}, nil
	}
	provider.createFn = func(context.Context, model.ReportCategory, time.Time, time.Time) error {
		created = true
		return nil
	}

	err := p.ensureCategoryReport(context.Background(), cfg, model.CategorySettlement)
	require.NoError(t, err)

	require.Len(t, provider.createdRanges, 1)
	assert.Equal(t, begin, provider.createdRanges[0][0])
	assert.Equal(t, end, provider.createdRanges[0][1])

	attempt, err := p.state.LastGenerateAttempt(context.Background(), model.CategorySettlement)
	require.NoError(t, err)
	assert.False(t, attempt.IsZero(), "attempt must be recorded")
}

func TestEnsureRespectsCooldown(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()
	ctx := context.Background()

	require.NoError(t, p.state.RecordGenerateAttempt(ctx, model.CategorySettlement, start.Add(-10*time.Minute)))
	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		return nil, nil
	}

	err := p.ensureCategoryReport(ctx, cfg, model.CategorySettlement)
	require.NoError(t, err)
	assert.Empty(t, provider.createdRanges, "creation inside the cooldown window must be skipped")
}

func TestEnsureRecordsAttemptBeforeCreateFails(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()
	ctx := context.Background()

	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		return nil, nil
	}
	provider.createFn = func(context.Context, model.ReportCategory, time.Time, time.Time) error {
		return assert.AnError
	}

	err := p.ensureCategoryReport(ctx, cfg, model.CategorySettlement)
	require.Error(t, err)

	attempt, err := p.state.LastGenerateAttempt(ctx, model.CategorySettlement)
	require.NoError(t, err)
	assert.Equal(t, start, attempt, "a failed creation still consumes the cooldown")
}

func TestEnsureDetectsVanishedReport(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()
	ctx := context.Background()

	// generated earlier today, but the catalog no longer lists it
	require.NoError(t, p.state.RecordGenerated(ctx, model.CategorySettlement, start.Add(-2*time.Hour)))
	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		return nil, nil
	}

	err := p.ensureCategoryReport(ctx, cfg, model.CategorySettlement)
	require.NoError(t, err)
	assert.Empty(t, provider.createdRanges, "a vanished report must not be re-requested")
}

func TestWaitForReportReadyTimesOutGracefully(t *testing.T) {
	p, _, provider, _ := newTestPaysync()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	withFakeClock(p, start)
	cfg, _ := config.Fetch()

	begin, end := yesterdayRange(start)
	calls := 0
	provider.listFn = func(context.Context, model.ReportCategory) ([]model.RemoteReport, error) {
		calls++
		return []model.RemoteReport{
			{BeginDate: begin, EndDate: end, FileName: "pending.csv", Status: "generating", CreatedAt: begin},
		}, nil
	}

	target := targetReportDate(start, time.UTC)
	err := p.waitForReportReady(context.Background(), cfg, model.CategorySettlement, target)
	assert.NoError(t, err, "a poll timeout is not an error")
	assert.Greater(t, calls, 0)
}

func TestCoveringReportPrefersReady(t *testing.T) {
	begin := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, 1)
	target := begin.Add(12 * time.Hour)

	reports := []model.RemoteReport{
		{BeginDate: begin, EndDate: end, FileName: "a.csv", Status: "generating"},
		{BeginDate: begin, EndDate: end, FileName: "b.csv", Status: "ready"},
	}
	found := coveringReport(reports, target)
	require.NotNil(t, found)
	assert.Equal(t, "b.csv", found.FileName)
}

func TestReportCoversIsHalfOpen(t *testing.T) {
	begin := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, 1)
	r := model.RemoteReport{BeginDate: begin, EndDate: end}

	assert.True(t, r.Covers(begin))
	assert.True(t, r.Covers(end.Add(-time.Nanosecond)))
	assert.False(t, r.Covers(end))
}
