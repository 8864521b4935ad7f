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
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/model"
)

const accountCacheTTL = 1 * time.Hour

// HandleReportNotification accepts a provider push notification announcing
// newly available report files. CSV files are queued in the persistent
// pending list; the debounce window is then (re)armed, so a burst of
// notifications produces a single sync run once the provider goes quiet.
// Non-CSV attachments are ignored.
func (p *Paysync) HandleReportNotification(ctx context.Context, accountID string, files []model.WebhookFile) error {
	ctx, span := tracer.Start(ctx, "HandleReportNotification")
	defer span.End()

	var csvFiles []model.WebhookFile
	for _, f := range files {
		if strings.EqualFold(f.Type, "csv") || strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			csvFiles = append(csvFiles, f)
		} else {
			logrus.Infof("ignoring non-CSV webhook file %s (%s)", f.Name, f.Type)
		}
	}
	if len(csvFiles) > 0 {
		if err := p.state.AppendPendingWebhookFiles(ctx, csvFiles); err != nil {
			return err
		}
	}

	p.debouncer.Notify(accountID)
	return nil
}

// flushDebounce runs when the debounce window expires. It resolves the last
// notifying account to a channel label and enqueues one webhook-triggered
// sync run.
func (p *Paysync) flushDebounce(accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	label := p.resolveAccountLabel(ctx, accountID)
	if err := p.queue.EnqueueSync(ctx, model.TriggerWebhook, label); err != nil {
		logrus.Errorf("failed to enqueue webhook sync for account %s: %v", accountID, err)
	}
}

// resolveAccountLabel maps a provider account id to the internal channel
// label, caching hits. Unknown accounts fall back to "full" so the run
// still executes and is attributable in the audit log.
func (p *Paysync) resolveAccountLabel(ctx context.Context, accountID string) string {
	if accountID == "" {
		return "full"
	}

	cacheKey := "account:" + accountID
	var label string
	if err := p.cache.Get(ctx, cacheKey, &label); err == nil && label != "" {
		return label
	}

	label, err := p.state.ResolveAccount(ctx, accountID)
	if err != nil {
		logrus.Errorf("failed to resolve account %s: %v", accountID, err)
		return "full"
	}
	if label == "" {
		logrus.Warnf("unknown webhook account %s, running full sync", accountID)
		return "full"
	}

	if err := p.cache.Set(ctx, cacheKey, label, accountCacheTTL); err != nil {
		logrus.Warnf("failed to cache account label for %s: %v", accountID, err)
	}
	return label
}
