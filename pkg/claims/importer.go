package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/claimtrack/platform/pkg/common/kafka"
	"github.com/claimtrack/platform/pkg/common/logger"
	"github.com/claimtrack/platform/pkg/observability/metrics"
)

// Mode selects the import semantics.
type Mode string

const (
	// ModeAppend inserts new identifiers and reports collisions with
	// existing ones instead of overwriting them.
	ModeAppend Mode = "append"
	// ModeOverwrite replaces the entire dataset with the upload.
	ModeOverwrite Mode = "overwrite"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAppend, "":
		return ModeAppend, nil
	case ModeOverwrite:
		return ModeOverwrite, nil
	}
	return "", fmt.Errorf("unknown import mode %q", raw)
}

type ImportOptions struct {
	Mode Mode
	// UpdateExisting merges append-mode collisions field by field instead
	// of recording them as conflicts.
	UpdateExisting bool
}

type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
)

// RowOutcome is the per-row verdict returned to the caller. Skipped rows
// are append conflicts; rejected rows failed validation.
type RowOutcome struct {
	Line    int     `json:"line"`
	ClaimID string  `json:"claim_id,omitempty"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// ImportResult reports exactly what an import did, never a bare boolean.
type ImportResult struct {
	Mode           Mode         `json:"mode"`
	Inserted       int          `json:"inserted"`
	Updated        int          `json:"updated"`
	Skipped        int          `json:"skipped"`
	Rejected       int          `json:"rejected"`
	Rows           []RowOutcome `json:"rows"`
	OrphanedFlags  int          `json:"orphaned_flags"`
	OrphanedNotes  int          `json:"orphaned_notes"`
	DatasetVersion uint64       `json:"dataset_version"`
}

// Importer applies validated rows to the claim store. Imports are
// serialized: one transaction owns the store at a time, and readers see
// the pre- or post-import dataset only.
type Importer struct {
	mu        sync.Mutex
	store     Store
	events    *kafka.Producer
	batchSize int
}

// NewImporter wires the engine. events may be nil when no broker is
// configured.
func NewImporter(store Store, events *kafka.Producer, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Importer{store: store, events: events, batchSize: batchSize}
}

// Import resolves the rows against the current dataset and commits them in
// a single transaction. Row rejections and append conflicts ride along in
// the result; a storage failure, cancellation, or an upload with no usable
// rows at all aborts with nothing committed.
func (im *Importer) Import(ctx context.Context, rows []RowResult, opts ImportOptions) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	if opts.Mode != ModeAppend && opts.Mode != ModeOverwrite {
		return nil, fmt.Errorf("unknown import mode %q", opts.Mode)
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	result := &ImportResult{Mode: opts.Mode}

	var existing map[string]Claim
	if opts.Mode == ModeAppend {
		snapshot, err := im.store.Snapshot(ctx)
		if err != nil {
			return nil, im.fail(err)
		}
		existing = make(map[string]Claim, len(snapshot.Claims))
		for _, claim := range snapshot.Claims {
			existing[claim.ID] = claim
		}
	}

	var inserts, updates []Claim
	seen := make(map[string]int, len(rows))

	for start := 0; start < len(rows); start += im.batchSize {
		// Cancellation is honored between row batches; partial batches are
		// discarded, never committed.
		if err := ctx.Err(); err != nil {
			metrics.ObserveImportFailure()
			return nil, err
		}

		end := start + im.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		for _, row := range rows[start:end] {
			if !row.Valid() {
				result.reject(row.Line, row.Claim.ID, joinRowErrors(row.Errs))
				continue
			}
			if firstLine, dup := seen[row.Claim.ID]; dup {
				result.reject(row.Line, row.Claim.ID,
					fmt.Sprintf("duplicate identifier in upload (first seen at line %d)", firstLine))
				continue
			}
			seen[row.Claim.ID] = row.Line

			switch opts.Mode {
			case ModeOverwrite:
				inserts = append(inserts, row.Claim)
				result.record(row.Line, row.Claim.ID, OutcomeInserted, "")
			case ModeAppend:
				prior, exists := existing[row.Claim.ID]
				switch {
				case exists && !opts.UpdateExisting:
					result.record(row.Line, row.Claim.ID, OutcomeSkipped, "identifier already exists")
				case exists:
					updates = append(updates, mergeClaim(prior, row.Claim))
					result.record(row.Line, row.Claim.ID, OutcomeUpdated, "")
				default:
					inserts = append(inserts, row.Claim)
					result.record(row.Line, row.Claim.ID, OutcomeInserted, "")
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.ObserveImportFailure()
		return nil, err
	}

	// An upload whose rows were all rejected carries zero usable rows and
	// is as fatal as an empty one; nothing is committed.
	if result.Inserted+result.Updated+result.Skipped == 0 {
		return nil, ErrEmptyInput
	}

	var summary MutationSummary
	var err error
	switch opts.Mode {
	case ModeOverwrite:
		summary, err = im.store.ReplaceAll(ctx, inserts)
	case ModeAppend:
		if len(inserts) > 0 || len(updates) > 0 {
			summary, err = im.store.ApplyAppend(ctx, inserts, updates)
		} else {
			var snapshot *Dataset
			if snapshot, err = im.store.Snapshot(ctx); err == nil {
				summary.Version = snapshot.Version
			}
		}
	}
	if err != nil {
		return nil, im.fail(err)
	}

	result.OrphanedFlags = summary.OrphanedFlags
	result.OrphanedNotes = summary.OrphanedNotes
	result.DatasetVersion = summary.Version

	metrics.ObserveImport(result.Inserted, result.Updated, result.Skipped, result.Rejected)
	if opts.Mode == ModeOverwrite {
		metrics.ObserveDataset(summary.Version, len(inserts))
	}

	logger.Log.WithFields(map[string]interface{}{
		"mode":           opts.Mode,
		"inserted":       result.Inserted,
		"updated":        result.Updated,
		"skipped":        result.Skipped,
		"rejected":       result.Rejected,
		"orphaned_flags": result.OrphanedFlags,
		"orphaned_notes": result.OrphanedNotes,
		"version":        result.DatasetVersion,
	}).Info("Import committed")

	im.publish(ctx, result)
	return result, nil
}

func (im *Importer) fail(err error) error {
	metrics.ObserveImportFailure()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return StorageError{reason: err}
}

func (im *Importer) publish(ctx context.Context, result *ImportResult) {
	if im.events == nil {
		return
	}
	err := im.events.PublishEvent(ctx, "claims-import", string(result.Mode), map[string]interface{}{
		"inserted":        result.Inserted,
		"updated":         result.Updated,
		"skipped":         result.Skipped,
		"rejected":        result.Rejected,
		"orphaned_flags":  result.OrphanedFlags,
		"orphaned_notes":  result.OrphanedNotes,
		"dataset_version": result.DatasetVersion,
	})
	if err != nil {
		// The import is already committed; the audit event is best effort.
		logger.Log.WithError(err).Warn("failed to publish import event")
	}
}

func (r *ImportResult) record(line int, claimID string, outcome Outcome, reason string) {
	r.Rows = append(r.Rows, RowOutcome{Line: line, ClaimID: claimID, Outcome: outcome, Reason: reason})
	switch outcome {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeRejected:
		r.Rejected++
	}
}

func (r *ImportResult) reject(line int, claimID, reason string) {
	r.record(line, claimID, OutcomeRejected, reason)
}

func joinRowErrors(errs []RowError) string {
	reasons := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Column != "" {
			reasons = append(reasons, e.Column+": "+e.Reason)
		} else {
			reasons = append(reasons, e.Reason)
		}
	}
	return strings.Join(reasons, "; ")
}

// mergeClaim folds an incoming row into an existing claim: the new value
// wins only when present. Required fields always survive validation
// non-empty, so in practice only the optional detail fields fall back.
func mergeClaim(existing, incoming Claim) Claim {
	merged := existing
	if incoming.PatientName != "" {
		merged.PatientName = incoming.PatientName
	}
	if incoming.InsurerName != "" {
		merged.InsurerName = incoming.InsurerName
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	merged.BilledAmount = incoming.BilledAmount
	merged.PaidAmount = incoming.PaidAmount
	if !incoming.DischargeDate.IsZero() {
		merged.DischargeDate = incoming.DischargeDate
	}
	if len(incoming.Detail.CPTCodes) > 0 {
		merged.Detail.CPTCodes = incoming.Detail.CPTCodes
	}
	if incoming.Detail.DenialReason != nil {
		merged.Detail.DenialReason = incoming.Detail.DenialReason
	}
	return merged
}
