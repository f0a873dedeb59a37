package claims

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uploadHeader = "id|patient_name|billed_amount|paid_amount|status|insurer_name|discharge_date|cpt_codes|denial_reason"

func upload(rows ...string) string {
	return strings.Join(append([]string{uploadHeader}, rows...), "\n")
}

func newTestValidator() *Validator {
	return NewValidator(DefaultStatusRules())
}

func TestParseUploadValidRows(t *testing.T) {
	input := upload(
		"30001|Jane Doe|1000.50|600.00|denied|Blue Shield|2024-01-15|99213,99214|Not medically necessary",
		"30002|John Smith|500.00|500.00|approved|Aetna|2024-02-03|99215|N/A",
	)

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.True(t, first.Valid())
	assert.Equal(t, "30001", first.Claim.ID)
	assert.Equal(t, "Jane Doe", first.Claim.PatientName)
	assert.Equal(t, Amount(100050), first.Claim.BilledAmount)
	assert.Equal(t, Amount(60000), first.Claim.PaidAmount)
	assert.Equal(t, StatusDenied, first.Claim.Status)
	assert.Equal(t, []string{"99213", "99214"}, first.Claim.Detail.CPTCodes)
	require.NotNil(t, first.Claim.Detail.DenialReason)
	assert.Equal(t, "Not medically necessary", *first.Claim.Detail.DenialReason)
	assert.Equal(t, "2024-01-15", first.Claim.DischargeDate.Format(DateLayout))

	second := rows[1]
	require.True(t, second.Valid())
	assert.Nil(t, second.Claim.Detail.DenialReason, "N/A encodes a null denial reason")
}

func TestParseUploadHeaderOrderInsensitive(t *testing.T) {
	input := "status|id|patient_name|billed_amount|paid_amount|insurer_name|discharge_date|cpt_codes|denial_reason\n" +
		"pending|30001|Jane Doe|100.00|0.00|Aetna|2024-01-15||"

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Valid())
	assert.Equal(t, StatusPending, rows[0].Claim.Status)
}

func TestParseUploadMissingColumnIsSchemaError(t *testing.T) {
	input := "id|patient_name|billed_amount|paid_amount|insurer_name|discharge_date|cpt_codes|denial_reason\n" +
		"30001|Jane Doe|100.00|0.00|Aetna|2024-01-15||"

	_, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.Contains(t, err.Error(), "status")
}

func TestParseUploadUnknownColumnIsSchemaError(t *testing.T) {
	input := uploadHeader + "|surprise\n" +
		"30001|Jane Doe|100.00|0.00|pending|Aetna|2024-01-15||N/A|x"

	_, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestParseUploadEmpty(t *testing.T) {
	_, err := newTestValidator().ParseUpload(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = newTestValidator().ParseUpload(strings.NewReader(uploadHeader + "\n"))
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseUploadRowLevelErrors(t *testing.T) {
	input := upload(
		"30001|Jane Doe|1000.00|600.00|denied|Blue Shield|2024-01-15|99213|N/A",
		"30002|John Smith|500.00|500.00|approved|Aetna|not-a-date|99215|N/A",
		"30003|Mary Major|oops|100.00|pending|Cigna|2024-03-01||N/A",
		"30004|Sam Low|100.00|50.00|mystery|Cigna|2024-03-02||N/A",
		"30005||100.00|50.00|pending|Cigna|2024-03-02||N/A",
		"30006|Eve Short|100.00",
	)

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err, "row errors must not fail the parse")
	require.Len(t, rows, 6)

	assert.True(t, rows[0].Valid())

	require.False(t, rows[1].Valid())
	assert.Equal(t, "discharge_date", rows[1].Errs[0].Column)

	require.False(t, rows[2].Valid())
	assert.Equal(t, "billed_amount", rows[2].Errs[0].Column)

	require.False(t, rows[3].Valid())
	assert.Equal(t, "status", rows[3].Errs[0].Column)
	assert.Contains(t, rows[3].Errs[0].Reason, "mystery")

	require.False(t, rows[4].Valid())
	assert.Equal(t, "patient_name", rows[4].Errs[0].Column)

	require.False(t, rows[5].Valid(), "short rows are rejected, not fatal")
}

func TestParseUploadNegativeAmountRejected(t *testing.T) {
	input := upload("30001|Jane Doe|-10.00|0.00|pending|Aetna|2024-01-15||N/A")

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Valid())
	assert.Equal(t, "billed_amount", rows[0].Errs[0].Column)
}

func TestParseUploadStatusAliases(t *testing.T) {
	input := upload(
		"30001|Jane Doe|100.00|100.00|Paid|Aetna|2024-01-15||N/A",
		"30002|John Smith|100.00|0.00|Under Review|Aetna|2024-01-16||N/A",
	)

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err)
	require.True(t, rows[0].Valid())
	assert.Equal(t, StatusApproved, rows[0].Claim.Status)
	require.True(t, rows[1].Valid())
	assert.Equal(t, StatusReview, rows[1].Claim.Status)
}

func TestParseUploadQuotedDelimiters(t *testing.T) {
	input := upload(`30001|"Doe|Jane"|100.00|0.00|pending|"Acme, Inc."|2024-01-15|"99213,99214"|N/A`)

	rows, err := newTestValidator().ParseUpload(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Valid())
	assert.Equal(t, "Doe|Jane", rows[0].Claim.PatientName)
	assert.Equal(t, "Acme, Inc.", rows[0].Claim.InsurerName)
	assert.Equal(t, []string{"99213", "99214"}, rows[0].Claim.Detail.CPTCodes)
}
