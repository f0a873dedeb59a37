package claims

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrEmptyInput rejects uploads with no data rows at all.
var ErrEmptyInput = errors.New("upload contains no data rows")

// SchemaError means the upload's column set does not match the claim
// schema. It is fatal: nothing is validated row by row.
type SchemaError struct {
	reason error
}

func (e SchemaError) Error() string {
	return e.reason.Error()
}

func (e SchemaError) Unwrap() error {
	return e.reason
}

func IsSchemaError(err error) bool {
	var se SchemaError
	return errors.As(err, &se)
}

// RowError is a column-level validation failure. It excludes only its own
// row from the import and is reported, never thrown.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Column, e.Reason)
}

// RowResult is the tagged outcome of validating one upload row: either a
// typed claim or the errors that disqualified it.
type RowResult struct {
	Line  int
	Claim Claim
	Errs  []RowError
}

func (r RowResult) Valid() bool {
	return len(r.Errs) == 0
}

// Validator checks an uploaded claim file against the fixed schema and
// produces per-row results.
type Validator struct {
	rules StatusRules
}

func NewValidator(rules StatusRules) *Validator {
	return &Validator{rules: rules}
}

// ParseUpload reads the pipe-delimited upload. A wrong column set fails
// the whole call with SchemaError; an upload without data rows fails with
// ErrEmptyInput. Everything else is reported per row.
func (v *Validator) ParseUpload(r io.Reader) ([]RowResult, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, SchemaError{reason: fmt.Errorf("unreadable header: %w", err)}
	}

	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var results []RowResult
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, SchemaError{reason: fmt.Errorf("unreadable row at line %d: %w", line, err)}
		}
		if len(record) != len(index) {
			results = append(results, RowResult{Line: line, Errs: []RowError{{
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(index), len(record)),
			}}})
			continue
		}
		results = append(results, v.parseRow(line, record, index))
	}

	if len(results) == 0 {
		return nil, ErrEmptyInput
	}
	return results, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[normalized]; dup {
			return nil, SchemaError{reason: fmt.Errorf("duplicate column %q", normalized)}
		}
		index[normalized] = i
	}

	expected := ExpectedColumns()
	for _, name := range expected {
		if _, ok := index[name]; !ok {
			return nil, SchemaError{reason: fmt.Errorf("missing required column %q", name)}
		}
	}
	if len(index) != len(expected) {
		for name := range index {
			if !isExpectedColumn(name) {
				return nil, SchemaError{reason: fmt.Errorf("unknown column %q", name)}
			}
		}
	}
	return index, nil
}

func isExpectedColumn(name string) bool {
	for _, expected := range ExpectedColumns() {
		if name == expected {
			return true
		}
	}
	return false
}

func (v *Validator) parseRow(line int, record []string, index map[string]int) RowResult {
	result := RowResult{Line: line}
	field := func(column string) string {
		return strings.TrimSpace(record[index[column]])
	}
	fail := func(column, reason string) {
		result.Errs = append(result.Errs, RowError{Line: line, Column: column, Reason: reason})
	}

	claim := Claim{}

	claim.ID = field(colID)
	if claim.ID == "" {
		fail(colID, "missing required field")
	}

	claim.PatientName = field(colPatientName)
	if claim.PatientName == "" {
		fail(colPatientName, "missing required field")
	}

	if billed, err := ParseAmount(field(colBilledAmount)); err != nil {
		fail(colBilledAmount, err.Error())
	} else {
		claim.BilledAmount = billed
	}

	if paid, err := ParseAmount(field(colPaidAmount)); err != nil {
		fail(colPaidAmount, err.Error())
	} else {
		claim.PaidAmount = paid
	}

	if status, ok := v.rules.Resolve(field(colStatus)); ok {
		claim.Status = status
	} else {
		fail(colStatus, fmt.Sprintf("unrecognized status %q", field(colStatus)))
	}

	claim.InsurerName = field(colInsurerName)
	if claim.InsurerName == "" {
		fail(colInsurerName, "missing required field")
	}

	if date, err := time.Parse(DateLayout, field(colDischargeDate)); err != nil {
		fail(colDischargeDate, fmt.Sprintf("unparseable date %q", field(colDischargeDate)))
	} else {
		claim.DischargeDate = date
	}

	claim.Detail.CPTCodes = splitCPTCodes(field(colCPTCodes))
	if reason := field(colDenialReason); reason != "" && reason != nullDenialReason {
		claim.Detail.DenialReason = &reason
	}

	result.Claim = claim
	return result
}

func splitCPTCodes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil
	}
	return codes
}
