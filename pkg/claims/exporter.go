package claims

import (
	"encoding/csv"
	"io"
	"strings"
)

// WriteCSV serializes claims joined with their details in the exact
// column layout ParseUpload accepts, sorted by identifier ascending.
// Importing an export in overwrite mode reproduces the dataset.
func WriteCSV(w io.Writer, claims []Claim) error {
	writer := csv.NewWriter(w)
	writer.Comma = Delimiter

	if err := writer.Write(ExpectedColumns()); err != nil {
		return err
	}

	ordered := append([]Claim(nil), claims...)
	sortClaims(ordered, "", false)

	for _, claim := range ordered {
		denial := nullDenialReason
		if claim.Detail.DenialReason != nil {
			denial = *claim.Detail.DenialReason
		}
		record := []string{
			claim.ID,
			claim.PatientName,
			claim.BilledAmount.String(),
			claim.PaidAmount.String(),
			string(claim.Status),
			claim.InsurerName,
			claim.DischargeDate.Format(DateLayout),
			strings.Join(claim.Detail.CPTCodes, ","),
			denial,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Export filters the dataset with the list contract and streams the
// matching rows as CSV.
func Export(w io.Writer, ds *Dataset, filter Filter) error {
	return WriteCSV(w, Match(ds, filter))
}
