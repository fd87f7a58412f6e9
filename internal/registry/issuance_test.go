package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChain struct {
	fungibleErr    error
	certificateErr error

	fungibleCalls    int
	certificateCalls int

	lastAccount  string
	lastAmount   float64
	lastMetadata CertificateMetadata
}

func (f *fakeChain) MintFungible(_ context.Context, account string, amount float64) (string, error) {
	f.fungibleCalls++
	f.lastAccount = account
	f.lastAmount = amount
	if f.fungibleErr != nil {
		return "", f.fungibleErr
	}
	return fmt.Sprintf("ftx-%d", f.fungibleCalls), nil
}

func (f *fakeChain) MintCertificate(_ context.Context, account string, metadata CertificateMetadata) (string, error) {
	f.certificateCalls++
	f.lastMetadata = metadata
	if f.certificateErr != nil {
		return "", f.certificateErr
	}
	return fmt.Sprintf("ctx-%d", f.certificateCalls), nil
}

func newTestCoordinator(t *testing.T) (*IssuanceCoordinator, *ProjectLedger, *MemoryStore, *fakeChain) {
	t.Helper()
	ledger, store := newTestLedger(t)
	chain := &fakeChain{}
	return NewIssuanceCoordinator(ledger, chain, zap.NewNop()), ledger, store, chain
}

func TestIssueHappyPath(t *testing.T) {
	coordinator, ledger, store, chain := newTestCoordinator(t)
	ctx := context.Background()

	_, err := ledger.Register(ctx, validRequest("P1"))
	require.NoError(t, err)

	result, err := coordinator.Issue(ctx, "P1", "vera", 42.5, "ipfs://meta")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, result.Outcome)
	assert.NotEmpty(t, result.CertificateID)
	assert.NotEmpty(t, result.FungibleTxRef)
	assert.NotEmpty(t, result.CertificateTxRef)

	project, err := ledger.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, project.Status)
	assert.Equal(t, 42.5, project.CreditedAmount)

	// Credits go to the submitter's account, and the certificate embeds
	// the committed amount.
	assert.Equal(t, "alice", chain.lastAccount)
	assert.Equal(t, 42.5, chain.lastAmount)
	assert.Equal(t, 42.5, chain.lastMetadata.CreditedAmount)
	assert.Equal(t, "ipfs://meta", chain.lastMetadata.MetadataRef)
	assert.Equal(t, result.CertificateID, chain.lastMetadata.CertificateID)

	record, err := store.IssuanceStoreView().ByProject(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, result.FungibleTxRef, record.FungibleTxRef)
	assert.Equal(t, result.CertificateTxRef, record.CertificateTxRef)
}

func TestIssueFungibleMintFailureRollsBack(t *testing.T) {
	coordinator, ledger, store, chain := newTestCoordinator(t)
	ctx := context.Background()
	chain.fungibleErr = errors.New("ledger unavailable")

	_, err := ledger.Register(ctx, validRequest("P1"))
	require.NoError(t, err)

	result, err := coordinator.Issue(ctx, "P1", "vera", 10, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, result.Outcome)
	assert.Equal(t, 0, chain.certificateCalls)

	project, err := ledger.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, project.Status)

	entries, err := store.ByProject(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, []AuditAction{
		ActionSubmitted, ActionVerifying, ActionVerifyRolledBack,
	}, auditActions(entries))

	// The rollback frees the project for a retry.
	chain.fungibleErr = nil
	result, err = coordinator.Issue(ctx, "P1", "vera", 10, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, result.Outcome)
}

func TestIssueCertificateMintFailureIsPartial(t *testing.T) {
	coordinator, ledger, store, chain := newTestCoordinator(t)
	ctx := context.Background()
	chain.certificateErr = errors.New("certificate service down")

	_, err := ledger.Register(ctx, validRequest("P1"))
	require.NoError(t, err)

	result, err := coordinator.Issue(ctx, "P1", "vera", 10, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartialFailure, result.Outcome)
	assert.NotEmpty(t, result.FungibleTxRef)
	assert.Equal(t, 1, chain.fungibleCalls)

	// The project stays claimed; reverting would permit a second fungible
	// mint on retry.
	project, err := ledger.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusVerifying, project.Status)

	entries, err := store.ByProject(ctx, "P1")
	require.NoError(t, err)
	partials := 0
	for _, entry := range entries {
		if entry.Action == ActionPartialIssuance {
			partials++
		}
	}
	assert.Equal(t, 1, partials)

	// No automatic retry: the claim blocks a second issuance attempt.
	_, err = coordinator.Issue(ctx, "P1", "vera", 10, "")
	assert.ErrorIs(t, err, ErrVerificationInProgress)
	assert.Equal(t, 1, chain.fungibleCalls)
}

func TestIssueClaimFailureMakesNoMintCalls(t *testing.T) {
	coordinator, ledger, _, chain := newTestCoordinator(t)
	ctx := context.Background()

	_, err := ledger.Register(ctx, validRequest("P1"))
	require.NoError(t, err)
	require.NoError(t, ledger.Reject(ctx, "P1", "vera", "bad evidence"))

	_, err = coordinator.Issue(ctx, "P1", "vera", 10, "")
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, 0, chain.fungibleCalls)
	assert.Equal(t, 0, chain.certificateCalls)
}

func TestIssueRejectsNonPositiveAmount(t *testing.T) {
	coordinator, ledger, _, chain := newTestCoordinator(t)
	ctx := context.Background()

	_, err := ledger.Register(ctx, validRequest("P1"))
	require.NoError(t, err)

	for _, amount := range []float64{0, -5} {
		_, err = coordinator.Issue(ctx, "P1", "vera", amount, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Equal(t, 0, chain.fungibleCalls)

	project, err := ledger.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, project.Status)
}

func TestIssueUnknownProject(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(t)

	_, err := coordinator.Issue(context.Background(), "missing", "vera", 10, "")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
