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
	"embed"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/praxisfinance/paysync/cache"
	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/database"
	redlock "github.com/praxisfinance/paysync/internal/lock"
	redis_db "github.com/praxisfinance/paysync/internal/redis-db"
	"github.com/praxisfinance/paysync/model"
)

var tracer = otel.Tracer("paysync.sync")

//go:embed sql/*.sql
var SQLFiles embed.FS

// syncLockKey is the single fleet-wide lock key guarding orchestration runs.
const syncLockKey = "paysync:sync:lock"

// DistributedLock is the narrow mutual-exclusion contract the orchestrator
// depends on. TryLock must be non-blocking: if the lock is held elsewhere it
// returns false immediately instead of queueing. ExtendLock renews the expiry
// for a holder whose run outlasts the initial TTL. Unlock is best-effort.
type DistributedLock interface {
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	ExtendLock(ctx context.Context, extension time.Duration) error
	Unlock(ctx context.Context) error
}

// Paysync represents the main struct for the report synchronization engine.
type Paysync struct {
	datasource database.IDataSource
	provider   ReportProvider
	locker     DistributedLock
	queue      *Queue
	cache      cache.Cache
	state      *stateStore
	debouncer  *Debouncer
	active     *activeJobs

	// overridable in tests; both default to the real clock
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewPaysync initializes a new instance of Paysync with the provided database
// datasource. It fetches the configuration and initializes the Redis-backed
// lock, task queue, cache, provider client and webhook debouncer.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Paysync: A pointer to the newly created Paysync instance.
// - error: An error if any of the initialization steps fail.
func NewPaysync(db database.IDataSource) (*Paysync, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	locker := redlock.NewLocker(redisClient.Client(), syncLockKey, model.GenerateUUIDWithSuffix("lock"))
	newQueue := NewQueue(configuration)

	p := &Paysync{
		datasource: db,
		provider:   NewHTTPReportProvider(configuration, db),
		locker:     locker,
		queue:      newQueue,
		cache:      newCache,
		state:      newStateStore(db),
		active:     newActiveJobs(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	p.debouncer = NewDebouncer(configuration.Sync.DebounceWindow(), p.flushDebounce)
	return p, nil
}

// Queue exposes the task queue, used by the API server to enqueue manual runs.
func (p *Paysync) Queue() *Queue {
	return p.queue
}

// Debouncer exposes the webhook debouncer for the inbound notification endpoint.
func (p *Paysync) Debouncer() *Debouncer {
	return p.debouncer
}

// Datasource exposes the underlying datasource, used by the API read side.
func (p *Paysync) Datasource() database.IDataSource {
	return p.datasource
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// activeJobs is a fast in-process guard keyed by job type. It short-circuits
// overlapping ticks inside one process before any distributed lock traffic.
type activeJobs struct {
	mu      sync.Mutex
	running map[string]bool
}

func newActiveJobs() *activeJobs {
	return &activeJobs{running: make(map[string]bool)}
}

func (a *activeJobs) begin(job string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running[job] {
		return false
	}
	a.running[job] = true
	return true
}

func (a *activeJobs) end(job string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.running, job)
}
