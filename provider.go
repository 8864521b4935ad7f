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
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/praxisfinance/paysync/config"
	"github.com/praxisfinance/paysync/database"
	"github.com/praxisfinance/paysync/model"
)

// ReportProvider is the client for the external payment processor's report
// API. ListReports returns the current catalog for a category, CreateReport
// requests generation for a date range, and the process methods download a
// ready report and import its line items, returning row-level counters.
type ReportProvider interface {
	ListReports(ctx context.Context, category model.ReportCategory) ([]model.RemoteReport, error)
	CreateReport(ctx context.Context, category model.ReportCategory, beginDate, endDate time.Time) error
	ProcessReport(ctx context.Context, category model.ReportCategory, fileName string) (model.ImportStats, error)
	ProcessReportURL(ctx context.Context, category model.ReportCategory, fileURL string) (model.ImportStats, error)
}

// HTTPReportProvider implements ReportProvider against the processor's REST
// API. Downloaded line items are stored through the datasource with per-row
// dedup on (category, reference).
type HTTPReportProvider struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	datasource database.IDataSource
}

func NewHTTPReportProvider(conf *config.Configuration, ds database.IDataSource) *HTTPReportProvider {
	return &HTTPReportProvider{
		baseURL:    strings.TrimRight(conf.Provider.BaseUrl, "/"),
		apiKey:     conf.Provider.ApiKey,
		client:     &http.Client{Timeout: time.Duration(conf.Provider.TimeoutSec) * time.Second},
		datasource: ds,
	}
}

type listReportsResponse struct {
	Reports []model.RemoteReport `json:"reports"`
}

// ListReports fetches the report catalog for a category. Transient HTTP
// failures are retried with exponential backoff before the error surfaces,
// since a failed listing would otherwise cost the whole scheduled tick.
func (p *HTTPReportProvider) ListReports(ctx context.Context, category model.ReportCategory) ([]model.RemoteReport, error) {
	endpoint := fmt.Sprintf("%s/v1/reports?category=%s", p.baseURL, url.QueryEscape(string(category)))

	var listing listReportsResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		p.authorize(req)
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("report listing failed with status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("report listing failed with status %d", resp.StatusCode))
		}
		listing = listReportsResponse{}
		return json.NewDecoder(resp.Body).Decode(&listing)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errors.Wrapf(err, "failed to list %s reports", category)
	}
	return listing.Reports, nil
}

// CreateReport asks the provider to generate a new report covering the
// given date range. Generation is asynchronous on the provider side; the
// caller polls the listing for readiness afterwards.
func (p *HTTPReportProvider) CreateReport(ctx context.Context, category model.ReportCategory, beginDate, endDate time.Time) error {
	payload, err := json.Marshal(map[string]string{
		"category":   string(category),
		"begin_date": beginDate.Format(time.RFC3339),
		"end_date":   endDate.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/reports", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to request %s report creation", category)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("report creation for %s failed with status %d", category, resp.StatusCode)
	}
	return nil
}

// ProcessReport downloads a catalog report file by name and imports its
// line items.
func (p *HTTPReportProvider) ProcessReport(ctx context.Context, category model.ReportCategory, fileName string) (model.ImportStats, error) {
	endpoint := fmt.Sprintf("%s/v1/reports/%s", p.baseURL, url.PathEscape(fileName))
	return p.downloadAndImport(ctx, category, fileName, endpoint)
}

// ProcessReportURL imports a report delivered as a direct download URL,
// the shape push notifications use.
func (p *HTTPReportProvider) ProcessReportURL(ctx context.Context, category model.ReportCategory, fileURL string) (model.ImportStats, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return model.ImportStats{}, errors.Wrapf(err, "invalid report url %q", fileURL)
	}
	name := parsed.Path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return p.downloadAndImport(ctx, category, name, fileURL)
}

func (p *HTTPReportProvider) downloadAndImport(ctx context.Context, category model.ReportCategory, fileName, endpoint string) (model.ImportStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ImportStats{}, err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return model.ImportStats{}, errors.Wrapf(err, "failed to download report %s", fileName)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return model.ImportStats{}, fmt.Errorf("report download %s failed with status %d", fileName, resp.StatusCode)
	}

	stats, err := p.importCSV(ctx, category, fileName, resp.Body)
	if err != nil {
		return stats, err
	}
	logrus.Infof("imported report %s (%s): %d rows, %d inserted, %d duplicate",
		fileName, category, stats.TotalRows, stats.InsertedRows, stats.DuplicateRows)
	return stats, nil
}

// importCSV reads report line items from a CSV stream and stores them,
// counting every row exactly once across the stats fields. A malformed row
// is skipped, a storage failure is counted as an error; neither aborts the
// rest of the file.
func (p *HTTPReportProvider) importCSV(ctx context.Context, category model.ReportCategory, fileName string, reader io.Reader) (model.ImportStats, error) {
	var stats model.ImportStats

	csvReader := csv.NewReader(bufio.NewReader(reader))
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return stats, fmt.Errorf("error reading CSV headers: %w", err)
	}
	columnMap, err := createColumnMap(headers)
	if err != nil {
		return stats, err
	}

	rowNum := 1
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.TotalRows++
			stats.ErrorCount++
			logrus.Warnf("error reading row %d of %s: %v", rowNum+1, fileName, err)
			rowNum++
			continue
		}
		rowNum++
		stats.TotalRows++

		row, err := parseSettlementRow(record, columnMap, category, fileName)
		if err != nil {
			stats.SkippedRows++
			logrus.Warnf("skipping row %d of %s: %v", rowNum, fileName, err)
			continue
		}
		stats.ValidRows++

		inserted, err := p.datasource.InsertSettlementRow(ctx, row)
		if err != nil {
			stats.ErrorCount++
			logrus.Errorf("error storing row %d of %s: %v", rowNum, fileName, err)
			continue
		}
		if inserted {
			stats.InsertedRows++
		} else {
			stats.DuplicateRows++
		}

		// Check for context cancellation every 1000 rows.
		if rowNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			default:
			}
		}
	}

	return stats, nil
}

func (p *HTTPReportProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// createColumnMap creates a map of column names to their indices based on
// the headers row, ensuring the required columns are present.
func createColumnMap(headers []string) (map[string]int, error) {
	requiredColumns := []string{"reference", "amount", "currency", "date"}
	columnMap := make(map[string]int)

	for i, header := range headers {
		columnMap[strings.ToLower(strings.TrimSpace(header))] = i
	}

	for _, col := range requiredColumns {
		if _, exists := columnMap[col]; !exists {
			return nil, fmt.Errorf("required column '%s' not found in CSV", col)
		}
	}

	return columnMap, nil
}

func parseSettlementRow(record []string, columnMap map[string]int, category model.ReportCategory, fileName string) (*model.SettlementRow, error) {
	reference, err := getRequiredField(record, columnMap, "reference")
	if err != nil {
		return nil, err
	}

	amountStr, err := getRequiredField(record, columnMap, "amount")
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	currency, err := getRequiredField(record, columnMap, "currency")
	if err != nil {
		return nil, err
	}

	dateStr, err := getRequiredField(record, columnMap, "date")
	if err != nil {
		return nil, err
	}
	valueDate, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		// providers are inconsistent about time-of-day on value dates
		valueDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", dateStr)
		}
	}

	var description string
	if idx, exists := columnMap["description"]; exists && idx < len(record) {
		description = strings.TrimSpace(record[idx])
	}

	return &model.SettlementRow{
		Category:    category,
		Reference:   reference,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		ValueDate:   valueDate,
		SourceFile:  fileName,
	}, nil
}

// getRequiredField retrieves a field from a CSV record, ensuring it is not empty.
func getRequiredField(record []string, columnMap map[string]int, field string) (string, error) {
	if index, exists := columnMap[field]; exists && index < len(record) {
		value := strings.TrimSpace(record[index])
		if value == "" {
			return "", fmt.Errorf("required field '%s' is empty", field)
		}
		return value, nil
	}
	return "", fmt.Errorf("required field '%s' is missing", field)
}
