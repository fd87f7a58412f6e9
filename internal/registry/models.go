package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status is the lifecycle status of a registry project
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusVerifying Status = "VERIFYING"
	StatusVerified  Status = "VERIFIED"
	StatusRejected  Status = "REJECTED"
	StatusLocked    Status = "LOCKED"
)

// FingerprintKind separates the two uniqueness sets
type FingerprintKind string

const (
	FingerprintLocation FingerprintKind = "location"
	FingerprintEvidence FingerprintKind = "evidence"
)

// AuditAction is the kind of lifecycle event recorded in the audit trail
type AuditAction string

const (
	ActionSubmitted        AuditAction = "submitted"
	ActionVerifying        AuditAction = "verifying"
	ActionVerified         AuditAction = "verified"
	ActionVerifyRolledBack AuditAction = "verify-failed-rolled-back"
	ActionPartialIssuance  AuditAction = "partial-issuance-failure"
	ActionRejected         AuditAction = "rejected"
	ActionLocked           AuditAction = "locked"
	ActionUnlocked         AuditAction = "unlocked"
)

// Project represents a registered restoration project. The project id is
// externally supplied and is the record identity; a project is created once
// and never deleted.
type Project struct {
	ProjectID           string         `gorm:"column:project_id;primaryKey" json:"project_id"`
	Submitter           string         `gorm:"not null;index" json:"submitter"`
	Latitude            float64        `gorm:"not null" json:"latitude"`
	Longitude           float64        `gorm:"not null" json:"longitude"`
	AreaHectares        float64        `gorm:"not null" json:"area_hectares"`
	EcosystemType       string         `json:"ecosystem_type"`
	Boundary            datatypes.JSON `json:"boundary,omitempty"` // optional GeoJSON
	EvidenceHash        string         `gorm:"not null" json:"evidence_hash"`
	LocationFingerprint string         `gorm:"not null;uniqueIndex" json:"location_fingerprint"`
	EvidenceFingerprint string         `gorm:"not null;uniqueIndex" json:"evidence_fingerprint"`
	Status              Status         `gorm:"type:varchar(16);not null;index" json:"status"`
	PriorStatus         *Status        `gorm:"type:varchar(16)" json:"prior_status,omitempty"` // set while LOCKED
	CreditedAmount      float64        `json:"credited_amount"`
	CertificateRef      *string        `json:"certificate_ref,omitempty"`
	Verifier            *string        `json:"verifier,omitempty"`
	SubmittedAt         time.Time      `gorm:"not null" json:"submitted_at"`
	VerifiedAt          *time.Time     `json:"verified_at,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// FingerprintReservation maps a fingerprint to its owning project. The
// (kind, fingerprint) pair is unique across the registry; a reservation is
// created atomically with its project and is never orphaned.
type FingerprintReservation struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind        FingerprintKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_fingerprint_kind_value" json:"kind"`
	Fingerprint string          `gorm:"not null;uniqueIndex:idx_fingerprint_kind_value" json:"fingerprint"`
	ProjectID   string          `gorm:"not null;index" json:"project_id"`
	ReservedAt  time.Time       `gorm:"not null" json:"reserved_at"`
}

// AuditLogEntry is an immutable record of a single lifecycle transition.
// Entries are append-only; no update or delete path exists.
type AuditLogEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID string         `gorm:"not null;index" json:"project_id"`
	Actor     string         `gorm:"not null" json:"actor"`
	Action    AuditAction    `gorm:"type:varchar(32);not null" json:"action"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

// IssuanceRecord captures a completed two-asset issuance. It exists only
// when both mint operations succeeded; a failed attempt leaves no record.
type IssuanceRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID        string    `gorm:"not null;uniqueIndex" json:"project_id"`
	CreditedAmount   float64   `gorm:"not null" json:"credited_amount"`
	CertificateID    string    `gorm:"not null" json:"certificate_id"`
	FungibleTxRef    string    `gorm:"not null" json:"fungible_tx_ref"`
	CertificateTxRef string    `gorm:"not null" json:"certificate_tx_ref"`
	IssuedAt         time.Time `gorm:"not null" json:"issued_at"`
}

// AdvisoryRecord stores the most recent merged analyzer recommendation for a
// project, informational input for the human verifier.
type AdvisoryRecord struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID       string         `gorm:"not null;index" json:"project_id"`
	VisionScore     float64        `json:"vision_score"`
	VegetationScore float64        `json:"vegetation_score"`
	Recommendation  string         `gorm:"not null" json:"recommendation"`
	Details         datatypes.JSON `json:"details,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
}

// ProjectView is the query-surface shape: the project record plus its
// issuance record (if any) and ordered audit trail.
type ProjectView struct {
	Project  Project         `json:"project"`
	Issuance *IssuanceRecord `json:"issuance,omitempty"`
	Audit    []AuditLogEntry `json:"audit"`
}
