package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAndConflict(t *testing.T) {
	store := NewMemoryFingerprintStore()
	ctx := context.Background()

	err := store.Reserve(ctx, FingerprintLocation, "fp-1", "P1")
	require.NoError(t, err)

	err = store.Reserve(ctx, FingerprintLocation, "fp-1", "P2")
	assert.ErrorIs(t, err, ErrFingerprintTaken)

	owner, taken, err := store.Owner(ctx, FingerprintLocation, "fp-1")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Equal(t, "P1", owner)
}

func TestReserveKindsAreDisjoint(t *testing.T) {
	store := NewMemoryFingerprintStore()
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, FingerprintLocation, "fp-1", "P1"))
	assert.NoError(t, store.Reserve(ctx, FingerprintEvidence, "fp-1", "P1"))
}

func TestReserveEmptyFingerprint(t *testing.T) {
	store := NewMemoryFingerprintStore()

	err := store.Reserve(context.Background(), FingerprintLocation, "", "P1")
	assert.ErrorIs(t, err, ErrEmptyFingerprint)
}

func TestReleaseAllowsRereservation(t *testing.T) {
	store := NewMemoryFingerprintStore()
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, FingerprintEvidence, "fp-1", "P1"))
	require.NoError(t, store.Release(ctx, FingerprintEvidence, "fp-1"))

	assert.NoError(t, store.Reserve(ctx, FingerprintEvidence, "fp-1", "P2"))
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	store := NewMemoryFingerprintStore()
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Reserve(ctx, FingerprintLocation, "contested", "P1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrFingerprintTaken)
		}
	}
	assert.Equal(t, 1, winners)
}
