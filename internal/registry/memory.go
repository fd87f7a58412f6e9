package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the project, audit,
// issuance and advisory stores. It backs tests and local development; the
// production deployment uses GormStore.
type MemoryStore struct {
	mu         sync.Mutex
	projects   map[string]Project
	audit      []AuditLogEntry
	issuances  map[string]IssuanceRecord
	advisories map[string][]AdvisoryRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:   map[string]Project{},
		issuances:  map[string]IssuanceRecord{},
		advisories: map[string][]AdvisoryRecord{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ProjectID]; exists {
		return ErrProjectExists
	}
	s.projects[project.ProjectID] = *project
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, projectID string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	copied := project
	return &copied, nil
}

func (s *MemoryStore) BySubmitter(ctx context.Context, submitter string) ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Project
	for _, p := range s.projects {
		if p.Submitter == submitter {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) ByStatus(ctx context.Context, status Status) ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Project
	for _, p := range s.projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.ProjectID]; !ok {
		return ErrProjectNotFound
	}
	project.UpdatedAt = time.Now()
	s.projects[project.ProjectID] = *project
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, projectID string, from, to Status, updates map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.Status != from {
		return false, nil
	}

	project.Status = to
	project.UpdatedAt = time.Now()
	for key, value := range updates {
		applyProjectUpdate(&project, key, value)
	}
	s.projects[projectID] = project
	return true, nil
}

func (s *MemoryStore) VerifyingSince(ctx context.Context, cutoff time.Time) ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Project
	for _, p := range s.projects {
		if p.Status == StatusVerifying && p.UpdatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, entry *AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *MemoryStore) ByProject(ctx context.Context, projectID string) ([]AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []AuditLogEntry
	for _, e := range s.audit {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AuditLogEntry, len(s.audit))
	copy(out, s.audit)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryIssuanceStore exposes the issuance part of a MemoryStore
type MemoryIssuanceStore struct{ *MemoryStore }

func (s MemoryIssuanceStore) Create(ctx context.Context, record *IssuanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issuances[record.ProjectID] = *record
	return nil
}

func (s MemoryIssuanceStore) ByProject(ctx context.Context, projectID string) (*IssuanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.issuances[projectID]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

// IssuanceStoreView returns the MemoryStore as an IssuanceStore
func (s *MemoryStore) IssuanceStoreView() IssuanceStore { return MemoryIssuanceStore{s} }

// MemoryAdvisoryStore exposes the advisory part of a MemoryStore
type MemoryAdvisoryStore struct{ *MemoryStore }

func (s MemoryAdvisoryStore) Create(ctx context.Context, record *AdvisoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.advisories[record.ProjectID] = append(s.advisories[record.ProjectID], *record)
	return nil
}

func (s MemoryAdvisoryStore) LatestByProject(ctx context.Context, projectID string) (*AdvisoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.advisories[projectID]
	if len(records) == 0 {
		return nil, nil
	}
	copied := records[len(records)-1]
	return &copied, nil
}

// AdvisoryStoreView returns the MemoryStore as an AdvisoryStore
func (s *MemoryStore) AdvisoryStoreView() AdvisoryStore { return MemoryAdvisoryStore{s} }

func sortProjects(projects []Project) {
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].SubmittedAt.Before(projects[j].SubmittedAt)
	})
}

func applyProjectUpdate(project *Project, key string, value interface{}) {
	switch key {
	case "prior_status":
		switch v := value.(type) {
		case *Status:
			project.PriorStatus = v
		case Status:
			project.PriorStatus = &v
		case nil:
			project.PriorStatus = nil
		}
	case "verifier":
		switch v := value.(type) {
		case *string:
			project.Verifier = v
		case string:
			project.Verifier = &v
		}
	case "credited_amount":
		if v, ok := value.(float64); ok {
			project.CreditedAmount = v
		}
	case "certificate_ref":
		switch v := value.(type) {
		case *string:
			project.CertificateRef = v
		case string:
			project.CertificateRef = &v
		}
	case "verified_at":
		switch v := value.(type) {
		case *time.Time:
			project.VerifiedAt = v
		case time.Time:
			project.VerifiedAt = &v
		}
	}
}
