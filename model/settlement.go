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
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRow is one line item of a settlement or release report as
// stored locally. Rows are deduplicated on (category, reference).
type SettlementRow struct {
	ID          int64           `json:"-"`
	Category    ReportCategory  `json:"category"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	ValueDate   time.Time       `json:"value_date"`
	SourceFile  string          `json:"source_file"`
	CreatedAt   time.Time       `json:"created_at"`
}
