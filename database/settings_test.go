package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func newTestDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return Datasource{Conn: db}, mock
}

func TestGetSetting(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM paysync_settings WHERE key = $1`)).
		WithArgs("paysync:auto_sync_enabled").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("true"))

	value, err := d.GetSetting(context.Background(), "paysync:auto_sync_enabled")
	assert.NoError(t, err)
	assert.Equal(t, "true", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSetting_Missing(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM paysync_settings WHERE key = $1`)).
		WithArgs("paysync:release:last_processed_at").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := d.GetSetting(context.Background(), "paysync:release:last_processed_at")
	assert.NoError(t, err)
	assert.Equal(t, "", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSetting(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO paysync_settings`)).
		WithArgs("paysync:release:last_generated_at", "2025-04-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := d.SetSetting(context.Background(), "paysync:release:last_generated_at", "2025-04-01T12:00:00Z")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
