package claims

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the dataset in process memory with the same
// transactional semantics as the Postgres repository. It backs local
// development (DATASTORE=memory) and the engine tests.
type MemoryStore struct {
	mu      sync.RWMutex
	version uint64
	claims  map[string]Claim
	flags   []Flag
	notes   []Note
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]Claim)}
}

func (s *MemoryStore) Snapshot(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := make([]Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		claims = append(claims, claim)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ID < claims[j].ID })

	return &Dataset{
		Version: s.version,
		Claims:  claims,
		Flags:   append([]Flag(nil), s.flags...),
		Notes:   append([]Note(nil), s.notes...),
	}, nil
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, claims []Claim) (MutationSummary, error) {
	if err := ctx.Err(); err != nil {
		return MutationSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Claim, len(claims))
	for _, claim := range claims {
		next[claim.ID] = claim
	}

	var keptFlags []Flag
	orphanedFlags := 0
	for _, flag := range s.flags {
		if _, ok := next[flag.ClaimID]; ok {
			keptFlags = append(keptFlags, flag)
		} else {
			orphanedFlags++
		}
	}

	var keptNotes []Note
	orphanedNotes := 0
	for _, note := range s.notes {
		if _, ok := next[note.ClaimID]; ok {
			keptNotes = append(keptNotes, note)
		} else {
			orphanedNotes++
		}
	}

	s.claims = next
	s.flags = keptFlags
	s.notes = keptNotes
	s.version++

	return MutationSummary{
		Version:       s.version,
		OrphanedFlags: orphanedFlags,
		OrphanedNotes: orphanedNotes,
	}, nil
}

func (s *MemoryStore) ApplyAppend(ctx context.Context, inserts, updates []Claim) (MutationSummary, error) {
	if err := ctx.Err(); err != nil {
		return MutationSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, claim := range inserts {
		s.claims[claim.ID] = claim
	}
	for _, claim := range updates {
		s.claims[claim.ID] = claim
	}
	s.version++

	return MutationSummary{Version: s.version}, nil
}

func (s *MemoryStore) AddFlag(ctx context.Context, flag Flag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[flag.ClaimID]; !ok {
		return ErrClaimNotFound
	}
	s.flags = append(s.flags, flag)
	return nil
}

func (s *MemoryStore) ResolveFlags(ctx context.Context, claimID, resolvedBy string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[claimID]; !ok {
		return 0, ErrClaimNotFound
	}

	now := time.Now().UTC()
	resolved := 0
	for i := range s.flags {
		if s.flags[i].ClaimID == claimID && !s.flags[i].Resolved {
			s.flags[i].Resolved = true
			s.flags[i].ResolvedBy = resolvedBy
			s.flags[i].ResolvedAt = &now
			resolved++
		}
	}
	return resolved, nil
}

func (s *MemoryStore) AddNote(ctx context.Context, note Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[note.ClaimID]; !ok {
		return ErrClaimNotFound
	}
	s.notes = append(s.notes, note)
	return nil
}
