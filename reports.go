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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/internal/notification"
	"github.com/praxisfinance/paysync/model"
)

// targetReportDate returns the instant a run's reports must cover: the
// previous calendar day, pinned to local noon in the configured timezone.
// Noon keeps the instant well inside the day's [begin, end) range on both
// sides of a DST transition.
func targetReportDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	yesterday := local.AddDate(0, 0, -1)
	return time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 12, 0, 0, 0, loc)
}

// dayRange returns the half-open [midnight, next midnight) range of the
// calendar day containing t, in t's location.
func dayRange(t time.Time) (time.Time, time.Time) {
	begin := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return begin, begin.AddDate(0, 0, 1)
}

// coveringReport returns the report in the listing that covers target, or
// nil. When several cover it, a ready one wins over a pending one.
func coveringReport(reports []model.RemoteReport, target time.Time) *model.RemoteReport {
	var found *model.RemoteReport
	for i := range reports {
		if !reports[i].Covers(target) {
			continue
		}
		if reports[i].Ready() {
			return &reports[i]
		}
		if found == nil {
			found = &reports[i]
		}
	}
	return found
}

// ensureCategoryReport makes sure a report covering the target date exists
// and is ready for the category, requesting generation when it is missing.
// Creation requests are rate limited by a per-category cooldown, and the
// attempt timestamp is recorded before the provider call so a crash mid-call
// still counts against the cooldown. A report that exists but is not yet
// ready is polled up to the configured ceiling; running out of patience is
// not an error, the next scheduled run picks it up.
func (p *Paysync) ensureCategoryReport(ctx context.Context, cfg *config.Configuration, category model.ReportCategory) error {
	ctx, span := tracer.Start(ctx, "EnsureReport")
	defer span.End()

	target := targetReportDate(p.now(), cfg.Sync.Location())

	reports, err := p.provider.ListReports(ctx, category)
	if err != nil {
		return err
	}

	if existing := coveringReport(reports, target); existing != nil {
		if existing.Ready() {
			return nil
		}
		logrus.Infof("%s report for %s exists but is not ready yet, polling", category, target.Format("2006-01-02"))
		return p.waitForReportReady(ctx, cfg, category, target)
	}

	lastGenerated, err := p.state.LastGenerated(ctx, category)
	if err != nil {
		return err
	}
	if sameLocalDay(lastGenerated, p.now(), cfg.Sync.Location()) {
		// We asked for this report earlier today and the catalog no longer
		// shows it. Re-requesting would loop, so flag it for a human.
		anomaly := fmt.Errorf("%s report generated today is missing from the provider catalog", category)
		logrus.Warn(anomaly)
		notification.NotifyError(anomaly)
		return nil
	}

	lastAttempt, err := p.state.LastGenerateAttempt(ctx, category)
	if err != nil {
		return err
	}
	if elapsed := p.now().Sub(lastAttempt); elapsed < cfg.Sync.CreateCooldown() {
		logrus.Infof("skipping %s report creation, last attempt %s ago is inside the cooldown", category, elapsed.Round(time.Second))
		return nil
	}

	begin, end := dayRange(target)
	if err := p.state.RecordGenerateAttempt(ctx, category, p.now()); err != nil {
		return err
	}
	logrus.Infof("requesting %s report for [%s, %s)", category, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	if err := p.provider.CreateReport(ctx, category, begin, end); err != nil {
		return err
	}
	if err := p.state.RecordGenerated(ctx, category, p.now()); err != nil {
		return err
	}

	return p.waitForReportReady(ctx, cfg, category, target)
}

// waitForReportReady polls the provider listing until a ready report covering
// target appears or the poll ceiling elapses. A timeout degrades gracefully:
// it logs and returns nil so the run carries on with whatever is importable.
func (p *Paysync) waitForReportReady(ctx context.Context, cfg *config.Configuration, category model.ReportCategory, target time.Time) error {
	deadline := p.now().Add(cfg.Sync.PollCeiling())

	for {
		p.sleep(ctx, cfg.Sync.PollInterval())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Polling can outlast the lock TTL when the provider is slow,
		// so every iteration renews the lock.
		p.extendSyncLock(ctx, cfg)

		reports, err := p.provider.ListReports(ctx, category)
		if err != nil {
			return err
		}
		if existing := coveringReport(reports, target); existing != nil && existing.Ready() {
			logrus.Infof("%s report %s is ready", category, existing.FileName)
			return nil
		}

		if p.now().After(deadline) {
			logrus.Warnf("%s report for %s still not ready after %s, deferring to the next run",
				category, target.Format("2006-01-02"), cfg.Sync.PollCeiling())
			return nil
		}
	}
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}
