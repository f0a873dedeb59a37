package claims

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportRoundTrip(t *testing.T) {
	denial := "Not medically necessary"
	first := testClaim("30001", "Jane Doe", 100050, 60000, StatusDenied, "Blue Shield", "2024-01-15")
	first.Detail.CPTCodes = []string{"99213", "99214"}
	first.Detail.DenialReason = &denial
	second := testClaim("30002", "John Smith", 50000, 50000, StatusApproved, "Aetna", "2024-02-03")

	store := seedStore(t, first, second)
	ctx := context.Background()

	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, ds.Claims))

	rows, err := newTestValidator().ParseUpload(strings.NewReader(out.String()))
	require.NoError(t, err)

	restored := NewMemoryStore()
	importer := NewImporter(restored, nil, 0)
	result, err := importer.Import(ctx, rows, ImportOptions{Mode: ModeOverwrite})
	require.NoError(t, err)
	require.Equal(t, 2, result.Inserted)
	require.Equal(t, 0, result.Rejected)

	after, err := restored.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds.Claims, after.Claims, "importing an export reproduces the dataset")
}

func TestExportQuotedDelimiterRoundTrip(t *testing.T) {
	claim := testClaim("30001", "Doe|Jane", 10000, 0, StatusPending, "Acme, Inc.", "2024-01-15")

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, []Claim{claim}))

	rows, err := newTestValidator().ParseUpload(strings.NewReader(out.String()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Valid())
	assert.Equal(t, "Doe|Jane", rows[0].Claim.PatientName)
	assert.Equal(t, "Acme, Inc.", rows[0].Claim.InsurerName)
}

func TestExportEncodesMissingDenialReason(t *testing.T) {
	claim := testClaim("30001", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15")

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, []Claim{claim}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, uploadHeader, lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "|N/A"), "nil denial reason exports as N/A")
}

func TestExportSortsByIdentifier(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, []Claim{
		testClaim("30002", "John Smith", 10000, 0, StatusPending, "Aetna", "2024-01-16"),
		testClaim("30001", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"),
	}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "30001|"))
	assert.True(t, strings.HasPrefix(lines[2], "30002|"))
}

func TestExportHonorsFilter(t *testing.T) {
	store := seedStore(t,
		testClaim("30001", "Jane Doe", 10000, 0, StatusDenied, "Aetna", "2024-01-15"),
		testClaim("30002", "John Smith", 10000, 10000, StatusApproved, "Cigna", "2024-01-16"),
	)
	ds, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Export(&out, ds, Filter{Status: StatusDenied}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2, "header plus the single denied claim")
	assert.True(t, strings.HasPrefix(lines[1], "30001|"))
}

func TestExportFormatsAmountsAndDates(t *testing.T) {
	claim := testClaim("30001", "Jane Doe", 100050, 5, StatusPending, "Aetna", "2024-01-15")
	claim.DischargeDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, []Claim{claim}))
	assert.Contains(t, out.String(), "|1000.50|0.05|")
	assert.Contains(t, out.String(), "|2024-01-15|")
}
