package claims

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Upload column set. One row carries the list-view fields joined with the
// detail fields; CPT codes are comma-joined inside their field, which is
// why the feed is pipe-delimited.
const (
	colID            = "id"
	colPatientName   = "patient_name"
	colBilledAmount  = "billed_amount"
	colPaidAmount    = "paid_amount"
	colStatus        = "status"
	colInsurerName   = "insurer_name"
	colDischargeDate = "discharge_date"
	colCPTCodes      = "cpt_codes"
	colDenialReason  = "denial_reason"
)

// Delimiter used by the claim feed.
const Delimiter = '|'

// nullDenialReason is how the feed encodes an absent denial reason.
const nullDenialReason = "N/A"

// ExpectedColumns returns the schema columns in canonical export order.
func ExpectedColumns() []string {
	return []string{
		colID,
		colPatientName,
		colBilledAmount,
		colPaidAmount,
		colStatus,
		colInsurerName,
		colDischargeDate,
		colCPTCodes,
		colDenialReason,
	}
}

// StatusAlias maps a feed status label onto a canonical Status value.
type StatusAlias struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

type StatusRules struct {
	Aliases []StatusAlias `yaml:"aliases" json:"aliases"`
}

// LoadStatusRules reads alias rules from a YAML file, falling back to the
// compiled-in defaults when no path is configured.
func LoadStatusRules(path string) (StatusRules, error) {
	if path == "" {
		return DefaultStatusRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultStatusRules(), err
	}

	var rules StatusRules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return StatusRules{}, err
	}

	if len(rules.Aliases) == 0 {
		return StatusRules{}, errors.New("no status aliases configured")
	}

	for _, alias := range rules.Aliases {
		if !Status(strings.ToLower(alias.To)).Valid() {
			return StatusRules{}, errors.New("status alias targets unknown status " + alias.To)
		}
	}

	return rules, nil
}

// DefaultStatusRules covers the labels seen in the historical claim feed.
func DefaultStatusRules() StatusRules {
	return StatusRules{Aliases: []StatusAlias{
		{From: "Paid", To: "approved"},
		{From: "Denied", To: "denied"},
		{From: "Under Review", To: "review"},
		{From: "Processing", To: "processing"},
		{From: "Pending", To: "pending"},
	}}
}

// Resolve maps a raw feed value onto a canonical Status. Canonical values
// match case-insensitively; anything else goes through the alias table.
func (r StatusRules) Resolve(raw string) (Status, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	if status := Status(strings.ToLower(value)); status.Valid() {
		return status, true
	}
	for _, alias := range r.Aliases {
		if strings.EqualFold(alias.From, value) {
			return Status(strings.ToLower(alias.To)), true
		}
	}
	return "", false
}
