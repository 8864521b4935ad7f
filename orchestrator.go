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
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/internal/notification"
	"github.com/praxisfinance/paysync/model"
)

const syncJobName = "report_sync"

// RunSync executes one full synchronization pass: ensure yesterday's reports
// exist per category, drain push-delivered files, then import everything new
// from the catalog. Exactly one run executes fleet-wide at a time; a run that
// loses the distributed lock is recorded as SKIPPED and returns nil. Failures
// inside a run are finalized into the audit record rather than propagated, so
// the task queue never retries a half-done run; the next scheduled tick picks
// up where the watermark and registry left off.
//
// Parameters:
// - ctx context.Context: The context for the run.
// - triggerSource string: What initiated the run (scheduler, webhook, manual).
// - triggerLabel string: Free-text qualifier, e.g. the webhook account label.
//
// Returns:
// - error: An error only for pre-run infrastructure failures.
func (p *Paysync) RunSync(ctx context.Context, triggerSource, triggerLabel string) error {
	ctx, span := tracer.Start(ctx, "RunSync")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	enabled, err := p.state.AutoSyncEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled && triggerSource != model.TriggerManual {
		logrus.Info("auto sync disabled, skipping run")
		return nil
	}

	if !p.active.begin(syncJobName) {
		logrus.Info("sync already running in this process, skipping")
		return nil
	}
	defer p.active.end(syncJobName)

	acquired, err := p.locker.TryLock(ctx, cfg.Sync.LockTTL())
	if err != nil {
		return err
	}
	if !acquired {
		logrus.Info("sync lock held elsewhere, skipping run")
		return p.recordSkippedRun(ctx, triggerSource, triggerLabel, "sync lock held by another instance")
	}
	defer func() {
		if err := p.locker.Unlock(ctx); err != nil {
			logrus.Errorf("failed to release sync lock: %v", err)
		}
	}()

	// Spread concurrent schedules that all won a tick at the same wall
	// second, so provider calls from a fleet don't land in lockstep.
	if cfg.Sync.JitterMaxSec > 0 {
		jitter := time.Duration(rand.Intn(cfg.Sync.JitterMaxSec+1)) * time.Second
		logrus.Infof("sync run starting in %s (%s trigger)", jitter, triggerSource)
		p.sleep(ctx, jitter)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	run := model.NewSyncRun(triggerSource, triggerLabel)
	run.StartedAt = p.now()
	if err := p.datasource.CreateSyncRun(ctx, run); err != nil {
		return err
	}

	result := p.executeSync(ctx, cfg)
	if err := p.datasource.FinalizeSyncRun(ctx, run.RunID, result); err != nil {
		logrus.Errorf("failed to finalize sync run %s: %v", run.RunID, err)
		return err
	}

	if result.Status == model.RunStatusSuccess {
		if err := p.state.RecordSuccessfulRun(ctx, p.now()); err != nil {
			logrus.Errorf("failed to record successful run timestamp: %v", err)
		}
	} else {
		notification.NotifyError(fmt.Errorf("sync run %s finished with status %s: %s",
			run.RunID, result.Status, result.ErrorMessage))
	}
	logrus.Infof("sync run %s finished: %s, %d inserted, %d duplicates",
		run.RunID, result.Status, result.Inserted, result.Excluded)
	return nil
}

// executeSync performs the three phases of a run under the lock and folds
// their outcomes into one audit result. A category that fails to ensure or
// import is logged and counted; the remaining categories still run.
func (p *Paysync) executeSync(ctx context.Context, cfg *config.Configuration) model.SyncRunResult {
	details := make(map[string]interface{})
	var aggregate model.ImportStats
	var failures []string

	for _, category := range model.Categories() {
		if err := p.ensureCategoryReport(ctx, cfg, category); err != nil {
			logrus.Errorf("failed to ensure %s report: %v", category, err)
			failures = append(failures, fmt.Sprintf("ensure %s: %v", category, err))
		}
	}

	webhookResult, err := p.drainWebhookFiles(ctx, cfg)
	if err != nil {
		logrus.Errorf("failed to drain webhook files: %v", err)
		failures = append(failures, fmt.Sprintf("webhook drain: %v", err))
	}
	if len(webhookResult.Files) > 0 || webhookResult.Stats.TotalRows > 0 {
		details["webhook"] = webhookResult
	}
	aggregate.Add(webhookResult.Stats)

	for _, category := range model.Categories() {
		catResult, err := p.importCategoryReports(ctx, cfg, category)
		if err != nil {
			logrus.Errorf("failed to import %s reports: %v", category, err)
			failures = append(failures, fmt.Sprintf("import %s: %v", category, err))
		}
		if len(catResult.Files) > 0 || len(catResult.FailedFiles) > 0 {
			details[string(category)] = catResult
		}
		aggregate.Add(catResult.Stats)
	}

	result := model.SyncRunResult{
		Status:   model.RunStatusSuccess,
		Inserted: aggregate.InsertedRows,
		Skipped:  aggregate.SkippedRows,
		Excluded: aggregate.DuplicateRows,
		Details:  details,
	}
	if aggregate.ErrorCount > 0 {
		details["row_errors"] = aggregate.ErrorCount
	}
	if len(failures) > 0 {
		result.Status = model.RunStatusError
		result.ErrorMessage = failures[0]
		details["failures"] = failures
	}
	return result
}

// extendSyncLock renews the distributed lock for another full TTL. The slow
// phases of a run call it between provider round trips, so the lock expiry
// tracks liveness instead of capping run duration. A failed extension is
// logged and the run carries on; if another instance slips in, the registry
// and the dedup constraint keep the import idempotent.
func (p *Paysync) extendSyncLock(ctx context.Context, cfg *config.Configuration) {
	if err := p.locker.ExtendLock(ctx, cfg.Sync.LockTTL()); err != nil {
		logrus.Warnf("failed to extend sync lock: %v", err)
	}
}

// recordSkippedRun writes an audit row for a run that never executed because
// the lock was held elsewhere, so lock contention stays visible in the log.
func (p *Paysync) recordSkippedRun(ctx context.Context, triggerSource, triggerLabel, reason string) error {
	run := model.NewSyncRun(triggerSource, triggerLabel)
	run.StartedAt = p.now()
	if err := p.datasource.CreateSyncRun(ctx, run); err != nil {
		return err
	}
	return p.datasource.FinalizeSyncRun(ctx, run.RunID, model.SyncRunResult{
		Status:       model.RunStatusSkipped,
		ErrorMessage: reason,
	})
}
