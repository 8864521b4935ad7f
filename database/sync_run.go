package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/praxisfinance/paysync/model"
)

// CreateSyncRun inserts a provisional audit record for an orchestration
// attempt. The record stays IN_PROGRESS until FinalizeSyncRun.
func (d Datasource) CreateSyncRun(ctx context.Context, run *model.SyncRun) error {
	detailsJSON, err := json.Marshal(run.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal sync run details")
	}

	if run.RunID == "" {
		run.RunID = model.GenerateUUIDWithSuffix("run")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = model.RunStatusInProgress

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO sync_runs (run_id, trigger_source, trigger_label, status, started_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.RunID, run.TriggerSource, run.TriggerLabel, run.Status, run.StartedAt, detailsJSON)
	if err != nil {
		return errors.Wrap(err, "failed to create sync run")
	}
	return nil
}

// FinalizeSyncRun completes an audit record with its final status and
// aggregate counters. Finalizing an already-finalized run is a no-op at the
// database level; the WHERE clause only matches in-progress rows so the
// record is never partially rewritten.
func (d Datasource) FinalizeSyncRun(ctx context.Context, runID string, result model.SyncRunResult) error {
	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal sync run details")
	}

	_, err = d.Conn.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = $2, completed_at = NOW(), inserted_rows = $3, skipped_rows = $4,
		    excluded_rows = $5, error_message = NULLIF($6, ''), details = $7
		WHERE run_id = $1 AND status = $8
	`, runID, result.Status, result.Inserted, result.Skipped, result.Excluded,
		result.ErrorMessage, detailsJSON, model.RunStatusInProgress)
	if err != nil {
		return errors.Wrapf(err, "failed to finalize sync run %s", runID)
	}
	return nil
}

// GetSyncRun retrieves a single audit record by its run ID.
func (d Datasource) GetSyncRun(ctx context.Context, runID string) (*model.SyncRun, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, run_id, trigger_source, trigger_label, status, started_at, completed_at,
		       inserted_rows, skipped_rows, excluded_rows, error_message, details
		FROM sync_runs
		WHERE run_id = $1
	`, runID)

	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("sync run %s not found", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get sync run %s", runID)
	}
	return run, nil
}

// GetAllSyncRuns retrieves audit records newest-first for the operator log
// viewer.
func (d Datasource) GetAllSyncRuns(ctx context.Context, limit, offset int) ([]model.SyncRun, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, run_id, trigger_source, trigger_label, status, started_at, completed_at,
		       inserted_rows, skipped_rows, excluded_rows, error_message, details
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve sync runs")
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan sync run")
		}
		runs = append(runs, *run)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating over sync runs")
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncRun(s rowScanner) (*model.SyncRun, error) {
	run := model.SyncRun{}
	var completedAt sql.NullTime
	var triggerLabel, errorMessage sql.NullString
	var detailsJSON []byte

	err := s.Scan(&run.ID, &run.RunID, &run.TriggerSource, &triggerLabel, &run.Status,
		&run.StartedAt, &completedAt, &run.Inserted, &run.Skipped, &run.Excluded,
		&errorMessage, &detailsJSON)
	if err != nil {
		return nil, err
	}

	if triggerLabel.Valid {
		run.TriggerLabel = triggerLabel.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &run.Details); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
