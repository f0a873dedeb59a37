package claims

import (
	"sort"
	"strings"
)

// PageSize is fixed by the list view.
const PageSize = 25

// Filter is the list/search contract consumed by the list view, the
// live-search UI, and the export interface.
type Filter struct {
	// Search matches case-insensitively against patient name, insurer
	// name, or identifier. Empty matches all claims.
	Search string
	// Status narrows to one lifecycle state when set.
	Status Status
	// Flagged narrows to claims with (true) or without (false) an active
	// flag. Nil means either.
	Flagged *bool
	// Page is 1-based.
	Page int
	// Sort names an alternate ordering column; identifier ascending is the
	// default. Desc reverses it.
	Sort string
	Desc bool
}

// Page is one page of matches plus enough to drive pagination.
type Page struct {
	Claims   []Claim `json:"claims"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	HasMore  bool    `json:"has_more"`
}

// Query evaluates the filter against a dataset snapshot. No match yields
// an empty page, not an error.
func Query(ds *Dataset, filter Filter) Page {
	matches := Match(ds, filter)
	sortClaims(matches, filter.Sort, filter.Desc)

	page := filter.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}

	return Page{
		Claims:   matches[start:end],
		Total:    len(matches),
		Page:     page,
		PageSize: PageSize,
		HasMore:  end < len(matches),
	}
}

// Match returns every claim the filter accepts, in snapshot order. The
// export engine uses it without pagination.
func Match(ds *Dataset, filter Filter) []Claim {
	flagged := ActiveFlagSet(ds.Flags)
	token := strings.ToLower(strings.TrimSpace(filter.Search))

	matches := make([]Claim, 0, len(ds.Claims))
	for _, claim := range ds.Claims {
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		if filter.Flagged != nil {
			_, isFlagged := flagged[claim.ID]
			if isFlagged != *filter.Flagged {
				continue
			}
		}
		if token != "" && !matchesToken(claim, token) {
			continue
		}
		matches = append(matches, claim)
	}
	return matches
}

// ActiveFlagSet returns the identifiers of claims with at least one
// unresolved flag.
func ActiveFlagSet(flags []Flag) map[string]struct{} {
	set := make(map[string]struct{})
	for _, flag := range flags {
		if !flag.Resolved {
			set[flag.ClaimID] = struct{}{}
		}
	}
	return set
}

func matchesToken(claim Claim, token string) bool {
	return strings.Contains(strings.ToLower(claim.PatientName), token) ||
		strings.Contains(strings.ToLower(claim.InsurerName), token) ||
		strings.Contains(strings.ToLower(claim.ID), token)
}

func sortClaims(claims []Claim, key string, desc bool) {
	less := func(a, b Claim) bool { return a.ID < b.ID }

	switch key {
	case "", "id":
	case "patient_name":
		less = func(a, b Claim) bool { return a.PatientName < b.PatientName }
	case "insurer_name":
		less = func(a, b Claim) bool { return a.InsurerName < b.InsurerName }
	case "status":
		less = func(a, b Claim) bool { return a.Status < b.Status }
	case "billed_amount":
		less = func(a, b Claim) bool { return a.BilledAmount < b.BilledAmount }
	case "paid_amount":
		less = func(a, b Claim) bool { return a.PaidAmount < b.PaidAmount }
	case "discharge_date":
		less = func(a, b Claim) bool { return a.DischargeDate.Before(b.DischargeDate) }
	}

	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		// Identifier keeps the ordering stable across equal keys.
		return a.ID < b.ID
	})
}
