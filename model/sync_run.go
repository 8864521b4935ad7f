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

import "time"

// Sync run statuses. A run record is created in the in-progress state and
// finalized exactly once.
const (
	RunStatusInProgress = "IN_PROGRESS"
	RunStatusSuccess    = "SUCCESS"
	RunStatusError      = "ERROR"
	RunStatusSkipped    = "SKIPPED"
)

// Sync trigger sources.
const (
	TriggerScheduler = "scheduler"
	TriggerWebhook   = "webhook"
	TriggerManual    = "manual"
)

// SyncRun is one row of the run audit log: a single orchestration attempt
// with its status and change summary.
type SyncRun struct {
	ID            int64                  `json:"-"`
	RunID         string                 `json:"run_id"`
	TriggerSource string                 `json:"trigger_source"`
	TriggerLabel  string                 `json:"trigger_label"`
	Status        string                 `json:"status"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Inserted      int                    `json:"inserted"`
	Skipped       int                    `json:"skipped"`
	Excluded      int                    `json:"excluded"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// SyncRunResult is the finalization payload for a run record.
type SyncRunResult struct {
	Status       string                 `json:"status"`
	Inserted     int                    `json:"inserted"`
	Skipped      int                    `json:"skipped"`
	Excluded     int                    `json:"excluded"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// NewSyncRun creates a provisional run record for the given trigger.
func NewSyncRun(triggerSource, triggerLabel string) *SyncRun {
	return &SyncRun{
		RunID:         GenerateUUIDWithSuffix("run"),
		TriggerSource: triggerSource,
		TriggerLabel:  triggerLabel,
		Status:        RunStatusInProgress,
		StartedAt:     time.Now(),
	}
}
