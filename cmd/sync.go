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
	"log"

	"github.com/spf13/cobra"

	"github.com/praxisfinance/paysync/model"
)

// syncCommands defines the "sync" command, which runs one synchronization
// pass in the foreground. Useful for operations and debugging; the run still
// takes the distributed lock like any other trigger.
func syncCommands(b *paysyncInstance) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "run one sync pass now",
		Run: func(cmd *cobra.Command, args []string) {
			if err := b.paysync.RunSync(context.Background(), model.TriggerManual, label); err != nil {
				log.Fatalf("sync failed: %v", err)
			}
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "trigger label recorded in the audit log")

	return cmd
}
