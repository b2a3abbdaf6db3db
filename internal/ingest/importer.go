package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var customerHeaders = []string{
	"customer_id",
	"first_name",
	"last_name",
	"age",
	"phone_number",
	"monthly_salary",
	"approved_limit",
	"current_debt",
}

var loanHeaders = []string{
	"customer_id",
	"loan_id",
	"loan_amount",
	"tenure",
	"interest_rate",
	"monthly_repayment",
	"emis_paid_on_time",
	"start_date",
	"end_date",
}

type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result summarizes one import run. Imported counts rows written or
// already present; rows listed in Errors were skipped.
type Result struct {
	Processed int        `json:"processed"`
	Imported  int        `json:"imported"`
	Errors    []RowError `json:"errors"`
}

type Importer struct {
	customerRepo customer.CustomerRepository
	loanRepo     loan.Repository
	logger       *slog.Logger
}

func NewImporter(customerRepo customer.CustomerRepository, loanRepo loan.Repository, logger *slog.Logger) *Importer {
	if customerRepo == nil || loanRepo == nil {
		panic("importer repositories cannot be nil")
	}
	return &Importer{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		logger:       logger.With("component", "Importer"),
	}
}

// ImportCustomers loads customer rows from CSV. Existing rows are left
// untouched, and the ID sequence is advanced past the highest imported
// ID so later registrations do not collide.
func (im *Importer) ImportCustomers(ctx context.Context, r io.Reader) (*Result, error) {
	rows, result, err := readRows(r, customerHeaders)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return result, nil
	}

	for i, record := range rows {
		rowNum := i + 2
		cust, rowErr := parseCustomerRow(record)
		if rowErr != nil {
			rowErr.Row = rowNum
			result.Errors = append(result.Errors, *rowErr)
			monitoring.RecordImportedRow("customer", "error")
			continue
		}
		result.Processed++

		if err := im.customerRepo.Upsert(ctx, cust); err != nil {
			im.logger.ErrorContext(ctx, "Failed to upsert imported customer",
				slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
			result.Errors = append(result.Errors, RowError{Row: rowNum, Field: "customer_id", Message: err.Error()})
			monitoring.RecordImportedRow("customer", "error")
			continue
		}
		result.Imported++
		monitoring.RecordImportedRow("customer", "ok")
	}

	if err := im.customerRepo.ResetIDSequence(ctx); err != nil {
		return result, err
	}

	im.logger.InfoContext(ctx, "Customer import finished",
		slog.Int("imported", result.Imported), slog.Int("errors", len(result.Errors)))
	return result, nil
}

// ImportLoans loads loan rows from CSV. Rows referencing a customer
// that does not exist are reported and skipped, matching the customer
// import's tolerance for partial files.
func (im *Importer) ImportLoans(ctx context.Context, r io.Reader) (*Result, error) {
	rows, result, err := readRows(r, loanHeaders)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return result, nil
	}

	now := time.Now().Truncate(24 * time.Hour)
	for i, record := range rows {
		rowNum := i + 2
		ln, rowErr := parseLoanRow(record, now)
		if rowErr != nil {
			rowErr.Row = rowNum
			result.Errors = append(result.Errors, *rowErr)
			monitoring.RecordImportedRow("loan", "error")
			continue
		}
		result.Processed++

		if _, err := im.customerRepo.FindByID(ctx, ln.CustomerID); err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				result.Errors = append(result.Errors, RowError{
					Row: rowNum, Field: "customer_id",
					Message: fmt.Sprintf("customer %d does not exist", ln.CustomerID),
				})
				monitoring.RecordImportedRow("loan", "error")
				continue
			}
			return result, err
		}

		if err := im.loanRepo.Upsert(ctx, ln); err != nil {
			im.logger.ErrorContext(ctx, "Failed to upsert imported loan",
				slog.Int64("loanID", ln.LoanID), slog.Any("error", err))
			result.Errors = append(result.Errors, RowError{Row: rowNum, Field: "loan_id", Message: err.Error()})
			monitoring.RecordImportedRow("loan", "error")
			continue
		}
		result.Imported++
		monitoring.RecordImportedRow("loan", "ok")
	}

	if err := im.loanRepo.ResetIDSequence(ctx); err != nil {
		return result, err
	}

	im.logger.InfoContext(ctx, "Loan import finished",
		slog.Int("imported", result.Imported), slog.Int("errors", len(result.Errors)))
	return result, nil
}

// ImportFiles loads both seed files from disk, customers first so loan
// rows can resolve their owners. A missing file is logged and skipped.
func (im *Importer) ImportFiles(ctx context.Context, customerPath, loanPath string) error {
	if err := im.importFile(ctx, customerPath, im.ImportCustomers); err != nil {
		return err
	}
	return im.importFile(ctx, loanPath, im.ImportLoans)
}

func (im *Importer) importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (*Result, error)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			im.logger.WarnContext(ctx, "Seed file not found, skipping", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to open seed file %s: %w", path, err)
	}
	defer f.Close()

	result, err := load(ctx, f)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		im.logger.WarnContext(ctx, "Seed file imported with row errors",
			slog.String("path", path), slog.Int("errors", len(result.Errors)))
	}
	return nil
}

func readRows(r io.Reader, expected []string) ([][]string, *Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid CSV: %v", apperrors.ErrValidation, err)
	}

	result := &Result{Errors: []RowError{}}
	if len(rows) < 2 {
		result.Errors = append(result.Errors, RowError{Row: 1, Field: "file", Message: "csv must include a header and at least one data row"})
		return nil, result, nil
	}
	if err := validateHeader(rows[0], expected); err != nil {
		result.Errors = append(result.Errors, RowError{Row: 1, Field: "header", Message: err.Error()})
		return nil, result, nil
	}
	return rows[1:], result, nil
}

func validateHeader(header, expected []string) error {
	if len(header) != len(expected) {
		return fmt.Errorf("expected %d columns, got %d", len(expected), len(header))
	}
	for i, name := range expected {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return fmt.Errorf("expected column %q at position %d, got %q", name, i+1, header[i])
		}
	}
	return nil
}

func parseCustomerRow(record []string) (*customer.Customer, *RowError) {
	customerID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil || customerID <= 0 {
		return nil, &RowError{Field: "customer_id", Message: "must be a positive integer"}
	}
	age, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, &RowError{Field: "age", Message: "must be an integer"}
	}
	income, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil {
		return nil, &RowError{Field: "monthly_salary", Message: "must be a number"}
	}
	limit, err := decimal.NewFromString(strings.TrimSpace(record[6]))
	if err != nil {
		return nil, &RowError{Field: "approved_limit", Message: "must be a number"}
	}
	debt := decimal.Zero
	if v := strings.TrimSpace(record[7]); v != "" {
		debt, err = decimal.NewFromString(v)
		if err != nil {
			return nil, &RowError{Field: "current_debt", Message: "must be a number"}
		}
	}

	return &customer.Customer{
		CustomerID:    customerID,
		FirstName:     strings.TrimSpace(record[1]),
		LastName:      strings.TrimSpace(record[2]),
		Age:           age,
		PhoneNumber:   strings.TrimSpace(record[4]),
		MonthlyIncome: income,
		ApprovedLimit: limit,
		CurrentDebt:   debt,
	}, nil
}

func parseLoanRow(record []string, now time.Time) (*loan.Loan, *RowError) {
	customerID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil || customerID <= 0 {
		return nil, &RowError{Field: "customer_id", Message: "must be a positive integer"}
	}
	loanID, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
	if err != nil || loanID <= 0 {
		return nil, &RowError{Field: "loan_id", Message: "must be a positive integer"}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, &RowError{Field: "loan_amount", Message: "must be a number"}
	}
	tenure, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil || tenure <= 0 {
		return nil, &RowError{Field: "tenure", Message: "must be a positive integer"}
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(record[4]))
	if err != nil {
		return nil, &RowError{Field: "interest_rate", Message: "must be a number"}
	}
	installment, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil {
		return nil, &RowError{Field: "monthly_repayment", Message: "must be a number"}
	}
	paidOnTime, err := strconv.Atoi(strings.TrimSpace(record[6]))
	if err != nil || paidOnTime < 0 {
		return nil, &RowError{Field: "emis_paid_on_time", Message: "must be a non-negative integer"}
	}
	startDate, err := time.Parse(time.DateOnly, strings.TrimSpace(record[7]))
	if err != nil {
		return nil, &RowError{Field: "start_date", Message: "must be a YYYY-MM-DD date"}
	}
	endDate, err := time.Parse(time.DateOnly, strings.TrimSpace(record[8]))
	if err != nil {
		return nil, &RowError{Field: "end_date", Message: "must be a YYYY-MM-DD date"}
	}

	return &loan.Loan{
		LoanID:             loanID,
		CustomerID:         customerID,
		LoanAmount:         amount,
		InterestRate:       rate,
		TenureMonths:       tenure,
		MonthlyInstallment: installment,
		EMIsPaidOnTime:     paidOnTime,
		StartDate:          startDate,
		EndDate:            endDate,
		IsActive:           !endDate.Before(now),
	}, nil
}
