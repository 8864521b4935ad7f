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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/model"
)

// Scheduler drives recurring sync runs on an interval-based loop. Inside
// the configured peak window ticks come every peak interval, outside it
// every off-peak interval. Each tick only enqueues a task; the worker and
// the distributed lock decide whether it actually runs.
type Scheduler struct {
	queue  *Queue
	stopCh chan struct{}
	wg     sync.WaitGroup

	// overridable in tests
	now         func() time.Time
	fetchConfig func() (*config.Configuration, error)
	retryDelay  time.Duration
}

func NewScheduler(queue *Queue) *Scheduler {
	return &Scheduler{
		queue:       queue,
		stopCh:      make(chan struct{}),
		now:         time.Now,
		fetchConfig: config.Fetch,
		retryDelay:  time.Minute,
	}
}

// Start launches the scheduling loop in a background goroutine. The interval
// is re-evaluated after every tick, so the loop adapts when the clock
// crosses a peak-window boundary without restarting.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			cfg, err := s.fetchConfig()
			if err != nil {
				logrus.Errorf("scheduler cannot load config, retrying: %v", err)
				select {
				case <-time.After(s.retryDelay):
					continue
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
			interval := s.tickInterval(cfg)
			select {
			case <-time.After(interval):
				if err := s.queue.EnqueueSync(ctx, model.TriggerScheduler, ""); err != nil {
					logrus.Errorf("scheduler failed to enqueue sync: %v", err)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit. A tick already enqueued
// still executes.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) tickInterval(cfg *config.Configuration) time.Duration {
	if inPeakWindow(cfg, s.now()) {
		return cfg.Sync.PeakInterval()
	}
	return cfg.Sync.OffPeakInterval()
}

// inPeakWindow reports whether t falls inside the configured peak hours in
// the sync timezone. The window is half-open [start, end) on the hour and
// may wrap past midnight; equal start and end means no peak window at all.
func inPeakWindow(cfg *config.Configuration, t time.Time) bool {
	start := cfg.Sync.PeakStartHour
	end := cfg.Sync.PeakEndHour
	if start == end {
		return false
	}
	hour := t.In(cfg.Sync.Location()).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
