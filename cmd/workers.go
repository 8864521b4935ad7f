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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/praxisfinance/paysync"
	"github.com/praxisfinance/paysync/config"
	redis_db "github.com/praxisfinance/paysync/internal/redis-db"
)

// processSyncTask runs one orchestration pass for a task pulled off the
// sync queue.
func (b *paysyncInstance) processSyncTask(ctx context.Context, t *asynq.Task) error {
	var payload paysync.SyncTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.paysync.RunSync(ctx, payload.TriggerSource, payload.TriggerLabel); err != nil {
		logrus.Errorf("sync run failed: %v", err)
		return err
	}

	log.Println(" [*] Sync Run Processed", payload.TriggerSource)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	// A single slot keeps runs strictly serial inside one worker; the
	// distributed lock covers the rest of the fleet.
	return map[string]int{cfg.Queue.SyncQueue: 1}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

// workerCommands defines the "workers" command. It starts the asynq worker
// that executes sync runs and the interval scheduler that enqueues them.
func workerCommands(b *paysyncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start paysync workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(paysync.SyncTaskType, b.processSyncTask)

			scheduler := paysync.NewScheduler(b.paysync.Queue())
			scheduler.Start(ctx)
			defer scheduler.Stop()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
