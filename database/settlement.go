package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/praxisfinance/paysync/model"
)

// InsertSettlementRow stores one imported report line item. It returns
// false without error when a row with the same (category, reference)
// already exists, so re-presented files count duplicates instead of
// failing the import.
func (d Datasource) InsertSettlementRow(ctx context.Context, row *model.SettlementRow) (bool, error) {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO settlement_rows (category, reference, amount, currency, description, value_date, source_file, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(row.Category), row.Reference, row.Amount.String(), row.Currency,
		row.Description, row.ValueDate, row.SourceFile, row.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to insert settlement row %s", row.Reference)
	}
	return true, nil
}
