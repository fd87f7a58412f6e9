package registry

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ProjectStore is the authoritative record store for project entities.
type ProjectStore interface {
	Create(ctx context.Context, project *Project) error
	Get(ctx context.Context, projectID string) (*Project, error)
	BySubmitter(ctx context.Context, submitter string) ([]Project, error)
	ByStatus(ctx context.Context, status Status) ([]Project, error)
	Update(ctx context.Context, project *Project) error
	// CompareAndSetStatus transitions status from `from` to `to` only if the
	// stored status still equals `from`, applying extra column updates in the
	// same write. Returns false when the record was not in `from`.
	CompareAndSetStatus(ctx context.Context, projectID string, from, to Status, updates map[string]interface{}) (bool, error)
	// VerifyingSince lists projects stuck in VERIFYING since before cutoff.
	VerifyingSince(ctx context.Context, cutoff time.Time) ([]Project, error)
}

// AuditStore persists append-only audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditLogEntry) error
	ByProject(ctx context.Context, projectID string) ([]AuditLogEntry, error)
	Recent(ctx context.Context, limit int) ([]AuditLogEntry, error)
}

// IssuanceStore persists completed issuance records.
type IssuanceStore interface {
	Create(ctx context.Context, record *IssuanceRecord) error
	ByProject(ctx context.Context, projectID string) (*IssuanceRecord, error)
}

// AdvisoryStore persists merged analyzer recommendations.
type AdvisoryStore interface {
	Create(ctx context.Context, record *AdvisoryRecord) error
	LatestByProject(ctx context.Context, projectID string) (*AdvisoryRecord, error)
}

// GormStore implements the registry stores on PostgreSQL via gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the registry tables
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&Project{},
		&FingerprintReservation{},
		&AuditLogEntry{},
		&IssuanceRecord{},
		&AdvisoryRecord{},
	)
}

// Project store

func (s *GormStore) Create(ctx context.Context, project *Project) error {
	return s.db.WithContext(ctx).Create(project).Error
}

func (s *GormStore) Get(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	err := s.db.WithContext(ctx).First(&project, "project_id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *GormStore) BySubmitter(ctx context.Context, submitter string) ([]Project, error) {
	var projects []Project
	err := s.db.WithContext(ctx).
		Where("submitter = ?", submitter).
		Order("submitted_at ASC").
		Find(&projects).Error
	return projects, err
}

func (s *GormStore) ByStatus(ctx context.Context, status Status) ([]Project, error) {
	var projects []Project
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at ASC").
		Find(&projects).Error
	return projects, err
}

func (s *GormStore) Update(ctx context.Context, project *Project) error {
	return s.db.WithContext(ctx).Save(project).Error
}

func (s *GormStore) CompareAndSetStatus(ctx context.Context, projectID string, from, to Status, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := s.db.WithContext(ctx).Model(&Project{}).
		Where("project_id = ? AND status = ?", projectID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) VerifyingSince(ctx context.Context, cutoff time.Time) ([]Project, error) {
	var projects []Project
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusVerifying, cutoff).
		Order("updated_at ASC").
		Find(&projects).Error
	return projects, err
}

// Fingerprint store

func (s *GormStore) Reserve(ctx context.Context, kind FingerprintKind, fingerprint, projectID string) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	reservation := FingerprintReservation{
		Kind:        kind,
		Fingerprint: fingerprint,
		ProjectID:   projectID,
		ReservedAt:  time.Now(),
	}
	err := s.db.WithContext(ctx).Create(&reservation).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrFingerprintTaken
	}
	return err
}

func (s *GormStore) Release(ctx context.Context, kind FingerprintKind, fingerprint string) error {
	return s.db.WithContext(ctx).
		Where("kind = ? AND fingerprint = ?", kind, fingerprint).
		Delete(&FingerprintReservation{}).Error
}

func (s *GormStore) Owner(ctx context.Context, kind FingerprintKind, fingerprint string) (string, bool, error) {
	var reservation FingerprintReservation
	err := s.db.WithContext(ctx).
		First(&reservation, "kind = ? AND fingerprint = ?", kind, fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return reservation.ProjectID, true, nil
}

// Audit store

func (s *GormStore) Append(ctx context.Context, entry *AuditLogEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormStore) ByProject(ctx context.Context, projectID string) ([]AuditLogEntry, error) {
	var entries []AuditLogEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	var entries []AuditLogEntry
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

// Issuance store

func (s *GormStore) CreateIssuance(ctx context.Context, record *IssuanceRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *GormStore) IssuanceByProject(ctx context.Context, projectID string) (*IssuanceRecord, error) {
	var record IssuanceRecord
	err := s.db.WithContext(ctx).First(&record, "project_id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Advisory store

func (s *GormStore) CreateAdvisory(ctx context.Context, record *AdvisoryRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *GormStore) LatestAdvisoryByProject(ctx context.Context, projectID string) (*AdvisoryRecord, error) {
	var record AdvisoryRecord
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Interface adapters: GormStore satisfies every store through thin views so
// each dependency is injected as the narrow interface it needs.

type gormIssuanceStore struct{ *GormStore }

func (s gormIssuanceStore) Create(ctx context.Context, record *IssuanceRecord) error {
	return s.CreateIssuance(ctx, record)
}

func (s gormIssuanceStore) ByProject(ctx context.Context, projectID string) (*IssuanceRecord, error) {
	return s.IssuanceByProject(ctx, projectID)
}

// IssuanceStoreView returns the GormStore as an IssuanceStore
func (s *GormStore) IssuanceStoreView() IssuanceStore { return gormIssuanceStore{s} }

type gormAdvisoryStore struct{ *GormStore }

func (s gormAdvisoryStore) Create(ctx context.Context, record *AdvisoryRecord) error {
	return s.CreateAdvisory(ctx, record)
}

func (s gormAdvisoryStore) LatestByProject(ctx context.Context, projectID string) (*AdvisoryRecord, error) {
	return s.LatestAdvisoryByProject(ctx, projectID)
}

// AdvisoryStoreView returns the GormStore as an AdvisoryStore
func (s *GormStore) AdvisoryStoreView() AdvisoryStore { return gormAdvisoryStore{s} }
