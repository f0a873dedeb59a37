package claims

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryDataset() *Dataset {
	return &Dataset{
		Version: 3,
		Claims: []Claim{
			testClaim("30001", "Jane Doe", 100000, 60000, StatusDenied, "Blue Shield", "2024-01-15"),
			testClaim("30002", "John Smith", 50000, 50000, StatusApproved, "Aetna", "2024-02-03"),
			testClaim("30003", "Janet Jones", 20000, 0, StatusPending, "Cigna", "2024-03-10"),
		},
		Flags: []Flag{
			{ID: "f1", ClaimID: "30001", Reason: "review_needed", CreatedAt: time.Now()},
			{ID: "f2", ClaimID: "30002", Reason: "resolved already", Resolved: true, CreatedAt: time.Now()},
		},
	}
}

func matchIDs(claims []Claim) []string {
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestQuerySearchIsCaseInsensitive(t *testing.T) {
	ds := queryDataset()

	page := Query(ds, Filter{Search: "jane"})
	assert.Equal(t, []string{"30001", "30003"}, matchIDs(page.Claims),
		"jane matches Jane Doe and Janet Jones")

	page = Query(ds, Filter{Search: "JOHN"})
	assert.Equal(t, []string{"30002"}, matchIDs(page.Claims))

	page = Query(ds, Filter{Search: "blue"})
	assert.Equal(t, []string{"30001"}, matchIDs(page.Claims), "insurer name is searchable")

	page = Query(ds, Filter{Search: "30003"})
	assert.Equal(t, []string{"30003"}, matchIDs(page.Claims), "identifier is searchable")
}

func TestQueryEmptySearchMatchesAll(t *testing.T) {
	page := Query(queryDataset(), Filter{})
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Claims, 3)
}

func TestQueryStatusFilter(t *testing.T) {
	page := Query(queryDataset(), Filter{Status: StatusDenied})
	assert.Equal(t, []string{"30001"}, matchIDs(page.Claims))

	page = Query(queryDataset(), Filter{Status: StatusReview})
	assert.Empty(t, page.Claims)
	assert.Equal(t, 0, page.Total)
}

func TestQueryFlaggedFilter(t *testing.T) {
	ds := queryDataset()
	yes, no := true, false

	page := Query(ds, Filter{Flagged: &yes})
	assert.Equal(t, []string{"30001"}, matchIDs(page.Claims),
		"resolved flags do not count as flagged")

	page = Query(ds, Filter{Flagged: &no})
	assert.Equal(t, []string{"30002", "30003"}, matchIDs(page.Claims))
}

func TestQueryCombinedFilters(t *testing.T) {
	ds := queryDataset()
	yes := true

	page := Query(ds, Filter{Search: "jane", Flagged: &yes})
	assert.Equal(t, []string{"30001"}, matchIDs(page.Claims))

	page = Query(ds, Filter{Search: "jane", Status: StatusApproved})
	assert.Empty(t, page.Claims)
}

func TestQueryPagination(t *testing.T) {
	ds := &Dataset{}
	for i := 1; i <= PageSize+1; i++ {
		ds.Claims = append(ds.Claims, testClaim(
			fmt.Sprintf("%05d", i), "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"))
	}

	first := Query(ds, Filter{Page: 1})
	assert.Len(t, first.Claims, PageSize)
	assert.Equal(t, PageSize+1, first.Total)
	assert.True(t, first.HasMore)

	second := Query(ds, Filter{Page: 2})
	require.Len(t, second.Claims, 1)
	assert.Equal(t, fmt.Sprintf("%05d", PageSize+1), second.Claims[0].ID)
	assert.False(t, second.HasMore)

	beyond := Query(ds, Filter{Page: 9})
	assert.Empty(t, beyond.Claims)
	assert.Equal(t, PageSize+1, beyond.Total)
	assert.False(t, beyond.HasMore)

	unset := Query(ds, Filter{})
	assert.Equal(t, 1, unset.Page, "page defaults to 1")
}

func TestQuerySortKeys(t *testing.T) {
	ds := queryDataset()

	page := Query(ds, Filter{Sort: "billed_amount"})
	assert.Equal(t, []string{"30003", "30002", "30001"}, matchIDs(page.Claims))

	page = Query(ds, Filter{Sort: "billed_amount", Desc: true})
	assert.Equal(t, []string{"30001", "30002", "30003"}, matchIDs(page.Claims))

	page = Query(ds, Filter{Sort: "patient_name"})
	assert.Equal(t, []string{"30001", "30003", "30002"}, matchIDs(page.Claims))

	page = Query(ds, Filter{Sort: "discharge_date", Desc: true})
	assert.Equal(t, []string{"30003", "30002", "30001"}, matchIDs(page.Claims))
}

func TestQuerySortTiesBreakOnIdentifier(t *testing.T) {
	ds := &Dataset{Claims: []Claim{
		testClaim("30002", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"),
		testClaim("30001", "Jane Doe", 10000, 0, StatusPending, "Aetna", "2024-01-15"),
	}}

	page := Query(ds, Filter{Sort: "patient_name"})
	assert.Equal(t, []string{"30001", "30002"}, matchIDs(page.Claims))
}
