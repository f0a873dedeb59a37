package claims

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the claim lifecycle state. The canonical values match the
// list-view enum; upstream feeds may use display aliases that the schema
// rules map onto these (see StatusRules).
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	StatusProcessing Status = "processing"
	StatusReview     Status = "review"
)

func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusDenied, StatusProcessing, StatusReview}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusProcessing, StatusReview:
		return true
	}
	return false
}

// Amount is a currency value in cents. Claim amounts carry at most two
// decimal places on the wire, so integer cents keep sums and the
// export/import round trip exact.
type Amount int64

var errNegativeAmount = errors.New("amount must not be negative")

func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, errNegativeAmount
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var cents int64
	for _, part := range []string{whole, frac} {
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return 0, fmt.Errorf("malformed amount %q", s)
			}
			cents = cents*10 + int64(ch-'0')
		}
	}
	return Amount(cents), nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DateLayout is the wire format for discharge dates.
const DateLayout = "2006-01-02"

// Claim is the root entity: the list-view fields plus the owned detail
// record. Identifier ordering is lexicographic.
type Claim struct {
	ID            string      `json:"id"`
	PatientName   string      `json:"patient_name"`
	BilledAmount  Amount      `json:"billed_amount"`
	PaidAmount    Amount      `json:"paid_amount"`
	Status        Status      `json:"status"`
	InsurerName   string      `json:"insurer_name"`
	DischargeDate time.Time   `json:"discharge_date"`
	Detail        ClaimDetail `json:"detail"`
}

// Underpayment is the positive difference between billed and paid, zero
// when the claim was paid in full or overpaid.
func (c Claim) Underpayment() Amount {
	if c.BilledAmount > c.PaidAmount {
		return c.BilledAmount - c.PaidAmount
	}
	return 0
}

// ClaimDetail is owned 1:1 by its Claim and written together with it
// during import.
type ClaimDetail struct {
	CPTCodes     []string `json:"cpt_codes"`
	DenialReason *string  `json:"denial_reason,omitempty"`
}

// Flag marks a claim for review. Flags are created and resolved outside
// this core; the import and analytics engines consume them read-only.
// A claim counts as flagged while it has at least one unresolved flag.
type Flag struct {
	ID          string     `json:"id"`
	ClaimID     string     `json:"claim_id"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	Resolved    bool       `json:"resolved"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Note is a reviewer annotation on a claim, consumed by the dashboard's
// recent-activity feed.
type Note struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claim_id"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
