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
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	redis_db "github.com/praxisfinance/paysync/internal/redis-db"
)

// SyncTaskType is the asynq task type for orchestration runs.
const SyncTaskType = "sync:run"

// SyncTaskPayload carries the trigger provenance into the worker.
type SyncTaskPayload struct {
	TriggerSource string `json:"trigger_source"`
	TriggerLabel  string `json:"trigger_label"`
}

// Queue represents a queue of sync tasks, wrapping an asynq client and
// inspector backed by Redis.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue using the Redis address from the
// provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	queueOptions, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		logrus.Errorf("Error parsing Redis URL: %v", err)
		return nil
	}
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:      queueOptions.Addr,
		Password:  queueOptions.Password,
		DB:        queueOptions.DB,
		TLSConfig: queueOptions.TLSConfig,
	})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:      queueOptions.Addr,
		Password:  queueOptions.Password,
		DB:        queueOptions.DB,
		TLSConfig: queueOptions.TLSConfig,
	})
	return &Queue{Client: client, Inspector: inspector}
}

// EnqueueSync enqueues one orchestration run. Retries are disabled:
// RunSync finalizes its own failures and the next scheduled tick is the
// retry mechanism, so a re-delivered task would only fight the lock.
func (q *Queue) EnqueueSync(ctx context.Context, triggerSource, triggerLabel string) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(SyncTaskPayload{
		TriggerSource: triggerSource,
		TriggerLabel:  triggerLabel,
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(SyncTaskType, payload)
	info, err := q.Client.EnqueueContext(ctx, task,
		asynq.Queue(conf.Queue.SyncQueue),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}
	logrus.Infof("enqueued sync run %s (%s trigger)", info.ID, triggerSource)
	return nil
}
