package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CertificateMetadata is embedded immutably in the certificate token. The
// credited amount is included, which is why the fungible mint must commit
// before the certificate mint is attempted.
type CertificateMetadata struct {
	ProjectID      string  `json:"project_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AreaHectares   float64 `json:"area_hectares"`
	CreditedAmount float64 `json:"credited_amount"`
	EcosystemType  string  `json:"ecosystem_type"`
	MetadataRef    string  `json:"metadata_ref"`
	CertificateID  string  `json:"certificate_id"`
}

// CarbonLedger is the external ledger executing the actual token mints.
// Both primitives are idempotency-unsafe: the coordinator is the only
// safeguard against double-minting.
type CarbonLedger interface {
	MintFungible(ctx context.Context, account string, amount float64) (txRef string, err error)
	MintCertificate(ctx context.Context, account string, metadata CertificateMetadata) (certTxRef string, err error)
}

// IssueOutcome classifies the result of an issuance attempt
type IssueOutcome string

const (
	OutcomeVerified       IssueOutcome = "verified"
	OutcomeRolledBack     IssueOutcome = "rolled-back"
	OutcomePartialFailure IssueOutcome = "partial-failure"
)

// IssueResult reports how an issuance attempt ended
type IssueResult struct {
	Outcome          IssueOutcome `json:"outcome"`
	Reason           string       `json:"reason,omitempty"`
	CertificateID    string       `json:"certificate_id,omitempty"`
	FungibleTxRef    string       `json:"fungible_tx_ref,omitempty"`
	CertificateTxRef string       `json:"certificate_tx_ref,omitempty"`
}

// IssuanceCoordinator orchestrates the two-step asset issuance as one
// logical operation with compensating rollback. Order is fixed: the
// fungible mint commits first because the certificate embeds the credited
// amount as immutable metadata.
type IssuanceCoordinator struct {
	ledger *ProjectLedger
	chain  CarbonLedger
	logger *zap.Logger
}

// NewIssuanceCoordinator creates a coordinator over the project ledger and
// the external carbon ledger
func NewIssuanceCoordinator(ledger *ProjectLedger, chain CarbonLedger, logger *zap.Logger) *IssuanceCoordinator {
	return &IssuanceCoordinator{ledger: ledger, chain: chain, logger: logger}
}

// Issue drives a verified issuance end to end. Once BeginVerification
// succeeds the sequence runs to completion: success, clean rollback, or a
// recorded partial failure. Every failure path appends exactly one audit
// entry before returning.
func (c *IssuanceCoordinator) Issue(ctx context.Context, projectID, verifier string, creditedAmount float64, metadataRef string) (*IssueResult, error) {
	if creditedAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	project, err := c.ledger.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Step 1: claim the project. A failure here means another verification
	// is in flight or the project is not pending; no external call is made.
	if err := c.ledger.BeginVerification(ctx, projectID, verifier); err != nil {
		return nil, err
	}

	// Step 2: fungible credit mint to the submitter's account.
	fungibleTxRef, err := c.chain.MintFungible(ctx, project.Submitter, creditedAmount)
	if err != nil {
		reason := fmt.Sprintf("fungible mint failed: %v", err)
		if abortErr := c.ledger.AbortVerification(ctx, projectID, verifier, reason); abortErr != nil {
			return nil, fmt.Errorf("fungible mint failed and rollback failed: %v: %w", err, abortErr)
		}
		return &IssueResult{Outcome: OutcomeRolledBack, Reason: reason}, nil
	}

	// Step 3: certificate mint, embedding the now-committed credited amount.
	certificateID := uuid.New().String()
	certTxRef, err := c.chain.MintCertificate(ctx, project.Submitter, CertificateMetadata{
		ProjectID:      projectID,
		Latitude:       project.Latitude,
		Longitude:      project.Longitude,
		AreaHectares:   project.AreaHectares,
		CreditedAmount: creditedAmount,
		EcosystemType:  project.EcosystemType,
		MetadataRef:    metadataRef,
		CertificateID:  certificateID,
	})
	if err != nil {
		// The fungible credits are already irrevocably minted. Reverting to
		// PENDING would permit a second full mint on retry, so the project
		// stays VERIFYING for manual operator resolution.
		reason := fmt.Sprintf("certificate mint failed after fungible mint: %v", err)
		if recordErr := c.ledger.RecordPartialFailure(ctx, projectID, verifier, reason, fungibleTxRef); recordErr != nil {
			return nil, fmt.Errorf("partial issuance failure could not be recorded: %v: %w", err, recordErr)
		}
		return &IssueResult{
			Outcome:       OutcomePartialFailure,
			Reason:        reason,
			FungibleTxRef: fungibleTxRef,
		}, nil
	}

	// Step 4: finalize.
	if err := c.ledger.CompleteVerification(ctx, projectID, verifier, creditedAmount, certificateID, fungibleTxRef, certTxRef); err != nil {
		return nil, fmt.Errorf("both mints succeeded but finalization failed: %w", err)
	}

	c.logger.Info("issuance completed",
		zap.String("project_id", projectID),
		zap.Float64("credited_amount", creditedAmount),
		zap.String("certificate_id", certificateID),
	)
	return &IssueResult{
		Outcome:          OutcomeVerified,
		CertificateID:    certificateID,
		FungibleTxRef:    fungibleTxRef,
		CertificateTxRef: certTxRef,
	}, nil
}
