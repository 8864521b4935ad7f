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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/praxisfinance/paysync"
	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/database"
	"github.com/praxisfinance/paysync/internal/notification"
)

// Paysync represents the CLI application, encapsulating the root Cobra command.
type Paysync struct {
	cmd *cobra.Command
}

// paysyncInstance holds the engine instance and its configuration, shared
// by all subcommands.
type paysyncInstance struct {
	paysync *paysync.Paysync
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *paysyncInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("paysync.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPaysync, err := setupPaysync(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.paysync = newPaysync
		app.cnf = cnf

		return nil
	}
}

// setupPaysync creates and initializes a new engine instance based on the
// provided configuration.
func setupPaysync(cfg *config.Configuration) (*paysync.Paysync, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPaysync, err := paysync.NewPaysync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating paysync: %v", err)
	}
	return newPaysync, nil
}

// NewCLI creates the command-line interface for the Paysync application.
func NewCLI() *Paysync {
	var configFile string
	b := &paysyncInstance{}

	var rootCmd = &cobra.Command{
		Use:   "paysync",
		Short: "Payment report synchronization engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./paysync.json", "Configuration file for paysync")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(syncCommands(b))

	return &Paysync{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Paysync) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
