package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"restoration-portal/registry-backend/pkg/geospatial"
	"restoration-portal/registry-backend/pkg/workflows"
)

// boundaryAreaTolerance is the allowed relative disagreement between a
// declared area and the area derived from a submitted GeoJSON boundary.
const boundaryAreaTolerance = 0.05

// Notifier receives lifecycle events after they are committed. Implemented
// by the websocket hub; nil disables notifications.
type Notifier interface {
	NotifyTransition(projectID string, action AuditAction, status Status)
}

// RegisterRequest carries a submission from the intake layer
type RegisterRequest struct {
	ProjectID     string  `json:"project_id"`
	Submitter     string  `json:"submitter"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AreaHectares  float64 `json:"area_hectares"`
	EcosystemType string  `json:"ecosystem_type"`
	EvidenceHash  string  `json:"evidence_hash"`
	Boundary      string  `json:"boundary,omitempty"` // optional GeoJSON
}

// ProjectLedger is the authoritative record store for projects and the sole
// owner of lifecycle transitions. All transitions are per-record atomic;
// BeginVerification is a compare-and-set that doubles as the mutual
// exclusion token for issuance.
type ProjectLedger struct {
	projects     ProjectStore
	fingerprints FingerprintStore
	issuances    IssuanceStore
	audit        *AuditTrail
	stateMachine *workflows.StateMachine
	notifier     Notifier
	logger       *zap.Logger
}

// NewProjectLedger creates a ledger over the given stores
func NewProjectLedger(
	projects ProjectStore,
	fingerprints FingerprintStore,
	issuances IssuanceStore,
	audit *AuditTrail,
	notifier Notifier,
	logger *zap.Logger,
) *ProjectLedger {
	return &ProjectLedger{
		projects:     projects,
		fingerprints: fingerprints,
		issuances:    issuances,
		audit:        audit,
		stateMachine: workflows.NewStateMachine(),
		notifier:     notifier,
		logger:       logger,
	}
}

// Register validates a submission, reserves both fingerprints and creates
// the project in PENDING. Reservation and creation form one atomic unit:
// a reservation made by an attempt that fails further down is released
// before returning, so the index never holds an entry for a project that
// does not exist.
func (l *ProjectLedger) Register(ctx context.Context, req RegisterRequest) (*Project, error) {
	if err := l.validateRegistration(req); err != nil {
		return nil, err
	}

	if _, err := l.projects.Get(ctx, req.ProjectID); err == nil {
		return nil, ErrProjectExists
	} else if !errors.Is(err, ErrProjectNotFound) {
		return nil, err
	}

	locationFP := LocationFingerprint(req.Latitude, req.Longitude, req.AreaHectares)
	evidenceFP := EvidenceFingerprint(req.ProjectID, req.EvidenceHash, req.Submitter)

	if err := l.fingerprints.Reserve(ctx, FingerprintLocation, locationFP, req.ProjectID); err != nil {
		if errors.Is(err, ErrFingerprintTaken) {
			return nil, ErrDuplicateLocation
		}
		return nil, err
	}
	if err := l.fingerprints.Reserve(ctx, FingerprintEvidence, evidenceFP, req.ProjectID); err != nil {
		l.fingerprints.Release(ctx, FingerprintLocation, locationFP)
		if errors.Is(err, ErrFingerprintTaken) {
			return nil, ErrDuplicateEvidence
		}
		return nil, err
	}

	now := time.Now()
	project := &Project{
		ProjectID:           req.ProjectID,
		Submitter:           req.Submitter,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		AreaHectares:        req.AreaHectares,
		EcosystemType:       req.EcosystemType,
		EvidenceHash:        req.EvidenceHash,
		LocationFingerprint: locationFP,
		EvidenceFingerprint: evidenceFP,
		Status:              StatusPending,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}
	if req.Boundary != "" {
		project.Boundary = datatypes.JSON([]byte(req.Boundary))
	}

	// Write-ahead: the submitted entry must be durable before the project
	// becomes observable.
	if err := l.audit.Record(ctx, req.ProjectID, req.Submitter, ActionSubmitted, map[string]interface{}{
		"location_fingerprint": locationFP,
		"evidence_fingerprint": evidenceFP,
		"area_hectares":        req.AreaHectares,
	}); err != nil {
		l.releaseFingerprints(ctx, locationFP, evidenceFP)
		return nil, err
	}

	if err := l.projects.Create(ctx, project); err != nil {
		l.releaseFingerprints(ctx, locationFP, evidenceFP)
		return nil, err
	}

	l.logger.Info("project registered",
		zap.String("project_id", project.ProjectID),
		zap.String("submitter", project.Submitter),
	)
	l.notify(project.ProjectID, ActionSubmitted, StatusPending)
	return project, nil
}

// BeginVerification atomically claims a PENDING project for verification.
// The PENDING->VERIFYING compare-and-set is the mutual exclusion token for
// issuance: of two concurrent callers exactly one wins, the other observes
// ErrVerificationInProgress.
func (l *ProjectLedger) BeginVerification(ctx context.Context, projectID, verifier string) error {
	if verifier == "" {
		return fmt.Errorf("%w: verifier is required", ErrInvalidInput)
	}

	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, StatusPending, StatusVerifying, map[string]interface{}{
		"verifier": verifier,
	})
	if err != nil {
		return err
	}
	if !swapped {
		project, getErr := l.projects.Get(ctx, projectID)
		if getErr != nil {
			return getErr
		}
		if project.Status == StatusVerifying {
			return ErrVerificationInProgress
		}
		return ErrNotPending
	}

	if err := l.audit.Record(ctx, projectID, verifier, ActionVerifying, nil); err != nil {
		// Audit must land before the transition is acknowledged; revert the
		// claim if it cannot.
		l.projects.CompareAndSetStatus(ctx, projectID, StatusVerifying, StatusPending, nil)
		return err
	}

	l.notify(projectID, ActionVerifying, StatusVerifying)
	return nil
}

// CompleteVerification finalizes a successful two-asset issuance: the
// project moves VERIFYING->VERIFIED and the issuance record is written.
func (l *ProjectLedger) CompleteVerification(ctx context.Context, projectID, verifier string, creditedAmount float64, certificateID, fungibleTxRef, certificateTxRef string) error {
	if creditedAmount <= 0 {
		return ErrInvalidAmount
	}

	now := time.Now()
	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, StatusVerifying, StatusVerified, map[string]interface{}{
		"credited_amount": creditedAmount,
		"certificate_ref": certificateID,
		"verified_at":     now,
	})
	if err != nil {
		return err
	}
	if !swapped {
		return ErrNotVerifying
	}

	if err := l.audit.Record(ctx, projectID, verifier, ActionVerified, map[string]interface{}{
		"credited_amount":    creditedAmount,
		"certificate_id":     certificateID,
		"fungible_tx_ref":    fungibleTxRef,
		"certificate_tx_ref": certificateTxRef,
	}); err != nil {
		l.projects.CompareAndSetStatus(ctx, projectID, StatusVerified, StatusVerifying, nil)
		return err
	}

	if err := l.issuances.Create(ctx, &IssuanceRecord{
		ProjectID:        projectID,
		CreditedAmount:   creditedAmount,
		CertificateID:    certificateID,
		FungibleTxRef:    fungibleTxRef,
		CertificateTxRef: certificateTxRef,
		IssuedAt:         now,
	}); err != nil {
		return fmt.Errorf("failed to persist issuance record: %w", err)
	}

	l.logger.Info("project verified",
		zap.String("project_id", projectID),
		zap.Float64("credited_amount", creditedAmount),
	)
	l.notify(projectID, ActionVerified, StatusVerified)
	return nil
}

// AbortVerification rolls a VERIFYING project back to PENDING after a failed
// issuance attempt. Fingerprints stay reserved: only the issuance attempt is
// undone, not the registration.
func (l *ProjectLedger) AbortVerification(ctx context.Context, projectID, actor, reason string) error {
	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, StatusVerifying, StatusPending, nil)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrNotVerifying
	}

	if err := l.audit.Record(ctx, projectID, actor, ActionVerifyRolledBack, map[string]interface{}{
		"reason": reason,
	}); err != nil {
		l.projects.CompareAndSetStatus(ctx, projectID, StatusPending, StatusVerifying, nil)
		return err
	}

	l.logger.Warn("verification rolled back",
		zap.String("project_id", projectID),
		zap.String("reason", reason),
	)
	l.notify(projectID, ActionVerifyRolledBack, StatusPending)
	return nil
}

// RecordPartialFailure audits a partial issuance (fungible credits minted,
// certificate mint failed) without changing state. The project stays
// VERIFYING for manual operator resolution: an automatic rollback would
// permit a second, fully duplicated mint on retry.
func (l *ProjectLedger) RecordPartialFailure(ctx context.Context, projectID, actor, reason, fungibleTxRef string) error {
	if err := l.audit.Record(ctx, projectID, actor, ActionPartialIssuance, map[string]interface{}{
		"reason":          reason,
		"fungible_tx_ref": fungibleTxRef,
	}); err != nil {
		return err
	}

	l.logger.Error("partial issuance failure, manual resolution required",
		zap.String("project_id", projectID),
		zap.String("fungible_tx_ref", fungibleTxRef),
		zap.String("reason", reason),
	)
	l.notify(projectID, ActionPartialIssuance, StatusVerifying)
	return nil
}

// Reject moves a PENDING project to REJECTED. Its fingerprints stay
// reserved permanently so the same site or evidence cannot be resubmitted.
func (l *ProjectLedger) Reject(ctx context.Context, projectID, verifier, reason string) error {
	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, StatusPending, StatusRejected, map[string]interface{}{
		"verifier": verifier,
	})
	if err != nil {
		return err
	}
	if !swapped {
		if _, getErr := l.projects.Get(ctx, projectID); getErr != nil {
			return getErr
		}
		return ErrNotPending
	}

	if err := l.audit.Record(ctx, projectID, verifier, ActionRejected, map[string]interface{}{
		"reason": reason,
	}); err != nil {
		l.projects.CompareAndSetStatus(ctx, projectID, StatusRejected, StatusPending, nil)
		return err
	}

	l.notify(projectID, ActionRejected, StatusRejected)
	return nil
}

// Lock freezes a project in its current state for dispute handling. The
// prior status is saved so Unlock can restore it exactly.
func (l *ProjectLedger) Lock(ctx context.Context, projectID, actor string) error {
	project, err := l.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == StatusLocked {
		return ErrAlreadyLocked
	}

	prior := project.Status
	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, prior, StatusLocked, map[string]interface{}{
		"prior_status": prior,
	})
	if err != nil {
		return err
	}
	if !swapped {
		return ErrAlreadyLocked
	}

	if err := l.audit.Record(ctx, projectID, actor, ActionLocked, map[string]interface{}{
		"prior_status": string(prior),
	}); err != nil {
		l.projects.CompareAndSetStatus(ctx, projectID, StatusLocked, prior, map[string]interface{}{
			"prior_status": nil,
		})
		return err
	}

	l.notify(projectID, ActionLocked, StatusLocked)
	return nil
}

// Unlock restores a LOCKED project to its saved prior status
func (l *ProjectLedger) Unlock(ctx context.Context, projectID, actor string) error {
	project, err := l.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status != StatusLocked {
		return ErrNotLocked
	}
	if project.PriorStatus == nil {
		return fmt.Errorf("locked project %s has no saved prior status", projectID)
	}

	prior := *project.PriorStatus
	swapped, err := l.projects.CompareAndSetStatus(ctx, projectID, StatusLocked, prior, map[string]interface{}{
		"prior_status": nil,
	})
	if err != nil {
		return err
	}
	if !swapped {
		return ErrNotLocked
	}

	if err := l.audit.Record(ctx, projectID, actor, ActionUnlocked, map[string]interface{}{
		"restored_status": string(prior),
	}); err != nil {
		l.projects.CompareAndSetStatus(ctx, projectID, prior, StatusLocked, map[string]interface{}{
			"prior_status": prior,
		})
		return err
	}

	l.notify(projectID, ActionUnlocked, prior)
	return nil
}

// View assembles the query-surface shape for one project: record, issuance
// record if present, and the ordered audit trail.
func (l *ProjectLedger) View(ctx context.Context, projectID string) (*ProjectView, error) {
	project, err := l.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	issuance, err := l.issuances.ByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	audit, err := l.audit.ByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ProjectView{Project: *project, Issuance: issuance, Audit: audit}, nil
}

// AllowedTransitions reports the statuses a project may move to next,
// informational for dashboard UX.
func (l *ProjectLedger) AllowedTransitions(status Status) []string {
	return l.stateMachine.GetAllowedTransitions(string(status))
}

// Get returns a single project record
func (l *ProjectLedger) Get(ctx context.Context, projectID string) (*Project, error) {
	return l.projects.Get(ctx, projectID)
}

// BySubmitter lists projects registered by one submitter
func (l *ProjectLedger) BySubmitter(ctx context.Context, submitter string) ([]Project, error) {
	return l.projects.BySubmitter(ctx, submitter)
}

// ByStatus lists projects in one lifecycle status
func (l *ProjectLedger) ByStatus(ctx context.Context, status Status) ([]Project, error) {
	return l.projects.ByStatus(ctx, status)
}

func (l *ProjectLedger) validateRegistration(req RegisterRequest) error {
	if req.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	if req.Submitter == "" {
		return fmt.Errorf("%w: submitter is required", ErrInvalidInput)
	}
	if req.EvidenceHash == "" {
		return fmt.Errorf("%w: evidence_hash is required", ErrInvalidInput)
	}
	if req.AreaHectares <= 0 {
		return fmt.Errorf("%w: area must be positive", ErrInvalidInput)
	}
	if err := geospatial.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if req.Boundary != "" {
		geometry, err := geospatial.ValidateGeoJSON(req.Boundary)
		if err != nil {
			return fmt.Errorf("%w: invalid boundary: %v", ErrInvalidInput, err)
		}
		boundaryHectares := geospatial.ConvertToHectares(geospatial.CalculateArea(geometry))
		if !geospatial.AreaMatchesDeclared(boundaryHectares, req.AreaHectares, boundaryAreaTolerance) {
			return fmt.Errorf("%w: declared area %.2f ha disagrees with boundary area %.2f ha",
				ErrInvalidInput, req.AreaHectares, boundaryHectares)
		}
	}
	return nil
}

func (l *ProjectLedger) releaseFingerprints(ctx context.Context, locationFP, evidenceFP string) {
	if err := l.fingerprints.Release(ctx, FingerprintLocation, locationFP); err != nil {
		l.logger.Error("failed to release location fingerprint", zap.Error(err))
	}
	if err := l.fingerprints.Release(ctx, FingerprintEvidence, evidenceFP); err != nil {
		l.logger.Error("failed to release evidence fingerprint", zap.Error(err))
	}
}

func (l *ProjectLedger) notify(projectID string, action AuditAction, status Status) {
	if l.notifier != nil {
		l.notifier.NotifyTransition(projectID, action, status)
	}
}
