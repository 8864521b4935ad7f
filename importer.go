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
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/model"
)

// categoryImportResult summarizes one category's import pass for the audit
// trail.
type categoryImportResult struct {
	Files       []string          `json:"files"`
	Stats       model.ImportStats `json:"stats"`
	FailedFiles []string          `json:"failed_files,omitempty"`
}

// importCategoryReports imports every catalog report for the category that is
// ready and newer than the watermark, oldest first, up to the per-run cap.
// The registry catches files the watermark alone would readmit. A file that
// fails stays out of the registry and off the watermark, so it is retried on
// the next run; later files in the same batch still import. The watermark
// only advances after the registry is persisted, so a crash between the two
// re-imports at most into the dedup constraint.
func (p *Paysync) importCategoryReports(ctx context.Context, cfg *config.Configuration, category model.ReportCategory) (categoryImportResult, error) {
	ctx, span := tracer.Start(ctx, "ImportReports")
	defer span.End()

	var result categoryImportResult

	watermark, err := p.state.Watermark(ctx, category)
	if err != nil {
		return result, err
	}
	reg, err := loadRegistryAt(ctx, p.state, category, p.now)
	if err != nil {
		return result, err
	}

	reports, err := p.provider.ListReports(ctx, category)
	if err != nil {
		return result, err
	}

	var candidates []model.RemoteReport
	for _, r := range reports {
		if r.Ready() && r.CreatedAt.After(watermark) {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	imported := 0
	var newestImported model.RemoteReport
	for _, report := range candidates {
		if imported >= cfg.Sync.ImportCapPerRun {
			logrus.Infof("%s import cap of %d reached, %d candidates deferred",
				category, cfg.Sync.ImportCapPerRun, len(candidates)-imported-len(result.FailedFiles))
			break
		}
		if reg.Contains(report.FileName) {
			logrus.Infof("skipping %s, already imported", report.FileName)
			continue
		}

		p.extendSyncLock(ctx, cfg)
		stats, err := p.provider.ProcessReport(ctx, category, report.FileName)
		result.Stats.Add(stats)
		if err != nil {
			logrus.Errorf("failed to import %s report %s: %v", category, report.FileName, err)
			result.Stats.ErrorCount++
			result.FailedFiles = append(result.FailedFiles, report.FileName)
			continue
		}

		reg.Add(report.FileName)
		result.Files = append(result.Files, report.FileName)
		newestImported = report
		imported++
	}

	if imported > 0 {
		if err := reg.Persist(ctx); err != nil {
			return result, err
		}
		if err := p.state.AdvanceWatermark(ctx, category, newestImported.CreatedAt); err != nil {
			return result, err
		}
	}

	return result, nil
}

// drainWebhookFiles imports every file descriptor queued by push
// notifications. Webhook files carry direct download URLs and no catalog
// timestamps, so they use their own registry namespace, bypass the per-run
// cap and never touch a category watermark. The pending list is cleared
// whether or not individual files succeeded; a failed file's rows are
// recovered by the regular catalog path or the dedup constraint.
func (p *Paysync) drainWebhookFiles(ctx context.Context, cfg *config.Configuration) (categoryImportResult, error) {
	ctx, span := tracer.Start(ctx, "DrainWebhookFiles")
	defer span.End()

	var result categoryImportResult

	pending, err := p.state.PendingWebhookFiles(ctx)
	if err != nil {
		return result, err
	}
	if len(pending) == 0 {
		return result, nil
	}

	reg, err := loadRegistryAt(ctx, p.state, model.CategoryWebhook, p.now)
	if err != nil {
		return result, err
	}

	for _, file := range pending {
		if reg.Contains(file.Name) {
			continue
		}
		p.extendSyncLock(ctx, cfg)
		stats, err := p.provider.ProcessReportURL(ctx, model.CategoryWebhook, file.Url)
		result.Stats.Add(stats)
		if err != nil {
			logrus.Errorf("failed to import webhook file %s: %v", file.Name, err)
			result.Stats.ErrorCount++
			result.FailedFiles = append(result.FailedFiles, file.Name)
			continue
		}
		reg.Add(file.Name)
		result.Files = append(result.Files, file.Name)
	}

	if len(result.Files) > 0 {
		if err := reg.Persist(ctx); err != nil {
			return result, err
		}
	}
	if err := p.state.ClearPendingWebhookFiles(ctx); err != nil {
		return result, err
	}
	return result, nil
}
