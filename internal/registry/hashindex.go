package registry

import (
	"context"
	"sync"
	"time"
)

// FingerprintStore is the uniqueness index over location and evidence
// fingerprints. Reserve is atomic: when two concurrent calls present the
// same (kind, fingerprint), exactly one succeeds and the loser observes
// ErrFingerprintTaken with no side effect.
type FingerprintStore interface {
	Reserve(ctx context.Context, kind FingerprintKind, fingerprint, projectID string) error
	Release(ctx context.Context, kind FingerprintKind, fingerprint string) error
	Owner(ctx context.Context, kind FingerprintKind, fingerprint string) (string, bool, error)
}

// MemoryFingerprintStore is a mutex-guarded in-memory FingerprintStore,
// used in tests and single-node deployments.
type MemoryFingerprintStore struct {
	mu      sync.Mutex
	entries map[FingerprintKind]map[string]FingerprintReservation
}

// NewMemoryFingerprintStore creates an empty in-memory fingerprint index
func NewMemoryFingerprintStore() *MemoryFingerprintStore {
	return &MemoryFingerprintStore{
		entries: map[FingerprintKind]map[string]FingerprintReservation{
			FingerprintLocation: {},
			FingerprintEvidence: {},
		},
	}
}

// Reserve inserts the fingerprint if absent, owning it for projectID
func (s *MemoryFingerprintStore) Reserve(ctx context.Context, kind FingerprintKind, fingerprint, projectID string) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.entries[kind]
	if !ok {
		set = map[string]FingerprintReservation{}
		s.entries[kind] = set
	}
	if _, taken := set[fingerprint]; taken {
		return ErrFingerprintTaken
	}
	set[fingerprint] = FingerprintReservation{
		Kind:        kind,
		Fingerprint: fingerprint,
		ProjectID:   projectID,
		ReservedAt:  time.Now(),
	}
	return nil
}

// Release removes a reservation. Only used for compensating rollback of a
// registration attempt that failed before its project was created.
func (s *MemoryFingerprintStore) Release(ctx context.Context, kind FingerprintKind, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.entries[kind]; ok {
		delete(set, fingerprint)
	}
	return nil
}

// Owner returns the project id holding a fingerprint, if reserved
func (s *MemoryFingerprintStore) Owner(ctx context.Context, kind FingerprintKind, fingerprint string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.entries[kind]
	if !ok {
		return "", false, nil
	}
	res, taken := set[fingerprint]
	if !taken {
		return "", false, nil
	}
	return res.ProjectID, true, nil
}
