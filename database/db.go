package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/praxisfinance/paysync/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createSettingsTable(db)
	if err != nil {
		return nil, err
	}
	err = createSyncRunTable(db)
	if err != nil {
		return nil, err
	}
	err = createSettlementRowTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createSettingsTable creates the durable key-value settings store backing
// the sync engine's registry, cooldown and watermark state.
func createSettingsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS paysync_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// createSyncRunTable creates the run audit log table.
func createSyncRunTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_runs (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			trigger_source TEXT NOT NULL,
			trigger_label TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP,
			inserted_rows INTEGER NOT NULL DEFAULT 0,
			skipped_rows INTEGER NOT NULL DEFAULT 0,
			excluded_rows INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			details JSONB
		)
	`)
	return err
}

// createSettlementRowTable creates the local settlement line-item store.
// The unique constraint on (category, reference) is what makes report
// imports idempotent at the row level.
func createSettlementRowTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settlement_rows (
			id SERIAL PRIMARY KEY,
			category TEXT NOT NULL,
			reference TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			value_date TIMESTAMP,
			source_file TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (category, reference)
		)
	`)
	return err
}
