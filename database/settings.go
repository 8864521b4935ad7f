package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// GetSetting retrieves a settings value by key. A missing key is not an
// error; it returns the empty string so callers can treat unset and empty
// uniformly.
func (d Datasource) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT value FROM paysync_settings WHERE key = $1
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to get setting %s", key)
	}
	return value, nil
}

// SetSetting upserts a settings value.
func (d Datasource) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO paysync_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return errors.Wrapf(err, "failed to set setting %s", key)
	}
	return nil
}
