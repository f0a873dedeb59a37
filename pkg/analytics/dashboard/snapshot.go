package dashboard

import (
	"sort"
	"time"

	"github.com/claimtrack/platform/pkg/claims"
)

// unspecifiedReason buckets denied claims that carry no denial reason.
const unspecifiedReason = "unspecified"

const defaultRecentLimit = 10

// Options narrows the snapshot. From/To bound the discharge date
// (inclusive); RecentLimit caps the activity feed.
type Options struct {
	From        *time.Time
	To          *time.Time
	RecentLimit int
}

type UnderpaymentStats struct {
	// Total over all claims with a positive underpayment.
	Total claims.Amount `json:"total"`
	// Average over those claims only; fully paid claims are excluded.
	Average claims.Amount `json:"average"`
	Claims  int           `json:"claims"`
}

type InsurerStats struct {
	Name        string        `json:"name"`
	Claims      int           `json:"claims"`
	TotalBilled claims.Amount `json:"total_billed"`
	TotalPaid   claims.Amount `json:"total_paid"`
	// PaymentRatio is paid/billed, zero when nothing was billed.
	PaymentRatio float64 `json:"payment_ratio"`
}

type DenialReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type MonthlyStats struct {
	Month       string        `json:"month"` // YYYY-MM
	Claims      int           `json:"claims"`
	TotalBilled claims.Amount `json:"total_billed"`
	TotalPaid   claims.Amount `json:"total_paid"`
}

type Activity struct {
	Kind      string    `json:"kind"` // flag or note
	ClaimID   string    `json:"claim_id"`
	Actor     string    `json:"actor"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the full dashboard statistics set, recomputed on demand
// from the current dataset.
type Snapshot struct {
	GeneratedAt    time.Time                `json:"generated_at"`
	DatasetVersion uint64                   `json:"dataset_version"`
	TotalClaims    int                      `json:"total_claims"`
	StatusCounts   map[claims.Status]int    `json:"status_counts"`
	FlaggedClaims  int                      `json:"flagged_claims"`
	TotalBilled    claims.Amount            `json:"total_billed"`
	TotalPaid      claims.Amount            `json:"total_paid"`
	Underpayment   UnderpaymentStats        `json:"underpayment"`
	Insurers       []InsurerStats           `json:"insurers"`
	DeniedClaims   int                      `json:"denied_claims"`
	DeniedBilled   claims.Amount            `json:"denied_billed"`
	DenialReasons  []DenialReasonCount      `json:"denial_reasons"`
	Monthly        []MonthlyStats           `json:"monthly"`
	RecentActivity []Activity               `json:"recent_activity"`
}

// Compute derives the snapshot from a dataset. It is a pure function:
// consistency comes from the snapshot, not from any retained state.
func Compute(ds *claims.Dataset, opts Options) *Snapshot {
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	inRange := make([]claims.Claim, 0, len(ds.Claims))
	rangeIDs := make(map[string]struct{}, len(ds.Claims))
	for _, claim := range ds.Claims {
		if opts.From != nil && claim.DischargeDate.Before(*opts.From) {
			continue
		}
		if opts.To != nil && claim.DischargeDate.After(*opts.To) {
			continue
		}
		inRange = append(inRange, claim)
		rangeIDs[claim.ID] = struct{}{}
	}

	snapshot := &Snapshot{
		GeneratedAt:    time.Now().UTC(),
		DatasetVersion: ds.Version,
		TotalClaims:    len(inRange),
		StatusCounts:   make(map[claims.Status]int),
	}
	for _, status := range claims.Statuses() {
		snapshot.StatusCounts[status] = 0
	}

	flagged := claims.ActiveFlagSet(ds.Flags)
	insurers := make(map[string]*InsurerStats)
	denialReasons := make(map[string]int)
	monthly := make(map[string]*MonthlyStats)

	for _, claim := range inRange {
		snapshot.StatusCounts[claim.Status]++
		snapshot.TotalBilled += claim.BilledAmount
		snapshot.TotalPaid += claim.PaidAmount

		if _, ok := flagged[claim.ID]; ok {
			snapshot.FlaggedClaims++
		}

		if underpaid := claim.Underpayment(); underpaid > 0 {
			snapshot.Underpayment.Total += underpaid
			snapshot.Underpayment.Claims++
		}

		stats := insurers[claim.InsurerName]
		if stats == nil {
			stats = &InsurerStats{Name: claim.InsurerName}
			insurers[claim.InsurerName] = stats
		}
		stats.Claims++
		stats.TotalBilled += claim.BilledAmount
		stats.TotalPaid += claim.PaidAmount

		if claim.Status == claims.StatusDenied {
			snapshot.DeniedClaims++
			snapshot.DeniedBilled += claim.BilledAmount
			reason := unspecifiedReason
			if claim.Detail.DenialReason != nil {
				reason = *claim.Detail.DenialReason
			}
			denialReasons[reason]++
		}

		month := claim.DischargeDate.Format("2006-01")
		trend := monthly[month]
		if trend == nil {
			trend = &MonthlyStats{Month: month}
			monthly[month] = trend
		}
		trend.Claims++
		trend.TotalBilled += claim.BilledAmount
		trend.TotalPaid += claim.PaidAmount
	}

	if snapshot.Underpayment.Claims > 0 {
		total := int64(snapshot.Underpayment.Total)
		count := int64(snapshot.Underpayment.Claims)
		snapshot.Underpayment.Average = claims.Amount((total + count/2) / count)
	}

	snapshot.Insurers = make([]InsurerStats, 0, len(insurers))
	for _, stats := range insurers {
		if stats.TotalBilled > 0 {
			stats.PaymentRatio = float64(stats.TotalPaid) / float64(stats.TotalBilled)
		}
		snapshot.Insurers = append(snapshot.Insurers, *stats)
	}
	sort.Slice(snapshot.Insurers, func(i, j int) bool {
		a, b := snapshot.Insurers[i], snapshot.Insurers[j]
		if a.Claims != b.Claims {
			return a.Claims > b.Claims
		}
		return a.Name < b.Name
	})

	snapshot.DenialReasons = make([]DenialReasonCount, 0, len(denialReasons))
	for reason, count := range denialReasons {
		snapshot.DenialReasons = append(snapshot.DenialReasons, DenialReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(snapshot.DenialReasons, func(i, j int) bool {
		a, b := snapshot.DenialReasons[i], snapshot.DenialReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})

	// Months with no claims are omitted, not synthesized.
	snapshot.Monthly = make([]MonthlyStats, 0, len(monthly))
	for _, trend := range monthly {
		snapshot.Monthly = append(snapshot.Monthly, *trend)
	}
	sort.Slice(snapshot.Monthly, func(i, j int) bool {
		return snapshot.Monthly[i].Month < snapshot.Monthly[j].Month
	})

	snapshot.RecentActivity = recentActivity(ds, rangeIDs, limit)
	return snapshot
}

func recentActivity(ds *claims.Dataset, rangeIDs map[string]struct{}, limit int) []Activity {
	feed := make([]Activity, 0, len(ds.Flags)+len(ds.Notes))
	for _, flag := range ds.Flags {
		if _, ok := rangeIDs[flag.ClaimID]; !ok {
			continue
		}
		feed = append(feed, Activity{
			Kind:      "flag",
			ClaimID:   flag.ClaimID,
			Actor:     flag.CreatedBy,
			Summary:   flag.Reason,
			CreatedAt: flag.CreatedAt,
		})
	}
	for _, note := range ds.Notes {
		if _, ok := rangeIDs[note.ClaimID]; !ok {
			continue
		}
		feed = append(feed, Activity{
			Kind:      "note",
			ClaimID:   note.ClaimID,
			Actor:     note.CreatedBy,
			Summary:   note.Body,
			CreatedAt: note.CreatedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}
