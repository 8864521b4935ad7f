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
	"sync"
	"time"
)

// Debouncer coalesces bursts of webhook notifications into a single flush.
// Every Notify cancels the pending timer and arms a fresh one, so the flush
// fires one quiet window after the last notification, carrying the account
// id of that last notification.
type Debouncer struct {
	mu        sync.Mutex
	window    time.Duration
	timer     *time.Timer
	gen       uint64
	accountID string
	flush     func(accountID string)
}

func NewDebouncer(window time.Duration, flush func(accountID string)) *Debouncer {
	return &Debouncer{window: window, flush: flush}
}

// Notify registers a notification for the given account and restarts the
// debounce window. Safe for concurrent use.
func (d *Debouncer) Notify(accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.accountID = accountID
	if d.timer != nil {
		d.timer.Stop()
	}
	// Each arming gets its own generation. Stop on an already-expired timer
	// returns false and its callback still runs; the generation check makes
	// that stale callback a no-op instead of a duplicate flush.
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// A later Notify or Stop superseded this arming.
		d.mu.Unlock()
		return
	}
	accountID := d.accountID
	d.timer = nil
	d.mu.Unlock()

	d.flush(accountID)
}

// Stop cancels any pending flush. Used on shutdown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
