package claims

import (
	"context"
	"errors"
	"fmt"
)

// ErrClaimNotFound is returned for flag/note writes against an unknown
// claim identifier.
var ErrClaimNotFound = errors.New("claim not found")

// StorageError marks a persistence failure inside an import transaction.
// It is fatal: the whole in-flight import has been rolled back.
type StorageError struct {
	reason error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage failure: %v", e.reason)
}

func (e StorageError) Unwrap() error {
	return e.reason
}

func IsStorageError(err error) bool {
	var se StorageError
	return errors.As(err, &se)
}

// Dataset is a consistent read snapshot of the claim store. Version is a
// monotonic counter bumped by every committed import; readers observe the
// pre- or post-import dataset, never a mix.
type Dataset struct {
	Version uint64
	Claims  []Claim // sorted by identifier ascending
	Flags   []Flag
	Notes   []Note
}

// MutationSummary reports what a committed import transaction did to
// dependent data.
type MutationSummary struct {
	Version       uint64
	OrphanedFlags int
	OrphanedNotes int
}

// Store is the consistency boundary around the claim dataset. Mutations
// are transactional: they commit entirely or leave the store untouched.
type Store interface {
	Snapshot(ctx context.Context) (*Dataset, error)

	// ReplaceAll swaps the entire dataset for the given claims. Flags and
	// notes whose claim identifier reappears in the new set are preserved;
	// the rest are cascade-deleted and counted in the summary.
	ReplaceAll(ctx context.Context, claims []Claim) (MutationSummary, error)

	// ApplyAppend inserts new claims and replaces the listed existing ones
	// in a single transaction.
	ApplyAppend(ctx context.Context, inserts, updates []Claim) (MutationSummary, error)

	// Flag/note writes are driven by the review screens outside this core;
	// they are exposed here so those collaborators share the same boundary.
	AddFlag(ctx context.Context, flag Flag) error
	ResolveFlags(ctx context.Context, claimID, resolvedBy string) (int, error)
	AddNote(ctx context.Context, note Note) error
}
