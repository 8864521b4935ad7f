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
	"sync"
	"time"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/model"
)

// memoryDataSource is an in-memory IDataSource for engine tests. It keeps
// settings, run records and settlement rows in maps guarded by one mutex.
type memoryDataSource struct {
	mu       sync.Mutex
	settings map[string]string
	runs     []*model.SyncRun
	rows     map[string]bool
}

func newMemoryDataSource() *memoryDataSource {
	return &memoryDataSource{
		settings: make(map[string]string),
		rows:     make(map[string]bool),
	}
}

func (m *memoryDataSource) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key], nil
}

func (m *memoryDataSource) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memoryDataSource) CreateSyncRun(_ context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.RunID == "" {
		run.RunID = model.GenerateUUIDWithSuffix("run")
	}
	run.Status = model.RunStatusInProgress
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryDataSource) FinalizeSyncRun(_ context.Context, runID string, result model.SyncRunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.RunID == runID && run.Status == model.RunStatusInProgress {
			now := time.Now()
			run.Status = result.Status
			run.CompletedAt = &now
			run.Inserted = result.Inserted
			run.Skipped = result.Skipped
			run.Excluded = result.Excluded
			run.ErrorMessage = result.ErrorMessage
			run.Details = result.Details
			return nil
		}
	}
	return fmt.Errorf("run %s not found", runID)
}

func (m *memoryDataSource) GetSyncRun(_ context.Context, runID string) (*model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return nil, fmt.Errorf("run %s not found", runID)
}

func (m *memoryDataSource) GetAllSyncRuns(_ context.Context, limit, offset int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.runs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.runs) {
		end = len(m.runs)
	}
	out := make([]model.SyncRun, 0, end-offset)
	for _, run := range m.runs[offset:end] {
		out = append(out, *run)
	}
	return out, nil
}

func (m *memoryDataSource) InsertSettlementRow(_ context.Context, row *model.SettlementRow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(row.Category) + "|" + row.Reference
	if m.rows[key] {
		return false, nil
	}
	m.rows[key] = true
	return true, nil
}

func (m *memoryDataSource) allRuns() []*model.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.SyncRun(nil), m.runs...)
}

// mockProvider is a scriptable ReportProvider.
type mockProvider struct {
	mu             sync.Mutex
	listFn         func(ctx context.Context, category model.ReportCategory) ([]model.RemoteReport, error)
	createFn       func(ctx context.Context, category model.ReportCategory, begin, end time.Time) error
	processFn      func(ctx context.Context, category model.ReportCategory, fileName string) (model.ImportStats, error)
	processURLFn   func(ctx context.Context, category model.ReportCategory, fileURL string) (model.ImportStats, error)
	createdRanges  [][2]time.Time
	processedFiles []string
}

func (m *mockProvider) ListReports(ctx context.Context, category model.ReportCategory) ([]model.RemoteReport, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return nil, nil
}

func (m *mockProvider) CreateReport(ctx context.Context, category model.ReportCategory, begin, end time.Time) error {
	m.mu.Lock()
	m.createdRanges = append(m.createdRanges, [2]time.Time{begin, end})
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, category, begin, end)
	}
	return nil
}

func (m *mockProvider) ProcessReport(ctx context.Context, category model.ReportCategory, fileName string) (model.ImportStats, error) {
	m.mu.Lock()
	m.processedFiles = append(m.processedFiles, fileName)
	m.mu.Unlock()
	if m.processFn != nil {
		return m.processFn(ctx, category, fileName)
	}
	return model.ImportStats{TotalRows: 1, ValidRows: 1, InsertedRows: 1}, nil
}

func (m *mockProvider) ProcessReportURL(ctx context.Context, category model.ReportCategory, fileURL string) (model.ImportStats, error) {
	m.mu.Lock()
	m.processedFiles = append(m.processedFiles, fileURL)
	m.mu.Unlock()
	if m.processURLFn != nil {
		return m.processURLFn(ctx, category, fileURL)
	}
	return model.ImportStats{TotalRows: 1, ValidRows: 1, InsertedRows: 1}, nil
}

func (m *mockProvider) processed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processedFiles...)
}

// mockLock is an in-memory DistributedLock.
type mockLock struct {
	mu      sync.Mutex
	held    bool
	denied  bool
	extends int
}

func (l *mockLock) TryLock(_ context.Context, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied || l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *mockLock) ExtendLock(_ context.Context, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return fmt.Errorf("not the lock holder")
	}
	l.extends++
	return nil
}

func (l *mockLock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// noopCache satisfies cache.Cache without storing anything.
type noopCache struct{}

func (noopCache) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) error { return nil }
func (noopCache) Get(_ context.Context, _ string, _ interface{}) error                  { return nil }
func (noopCache) Delete(_ context.Context, _ string) error                              { return nil }

func mockedConfig() *config.Configuration {
	cnf := &config.Configuration{}
	cnf.Sync.Timezone = "UTC"
	cnf.Sync.JitterMaxSec = -1
	cnf.Sync.PollCeilingSec = 1
	config.MockConfig(cnf)
	return cnf
}

// newTestPaysync builds an engine wired to in-memory fakes. The clock and
// sleep hooks are injectable so polling and jitter cost no wall time.
func newTestPaysync() (*Paysync, *memoryDataSource, *mockProvider, *mockLock) {
	mockedConfig()
	ds := newMemoryDataSource()
	provider := &mockProvider{}
	lock := &mockLock{}

	p := &Paysync{
		datasource: ds,
		provider:   provider,
		locker:     lock,
		cache:      noopCache{},
		state:      newStateStore(ds),
		active:     newActiveJobs(),
		now:        time.Now,
		sleep:      func(context.Context, time.Duration) {},
	}
	p.debouncer = NewDebouncer(time.Hour, func(string) {})
	return p, ds, provider, lock
}
