package registry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"restoration-portal/registry-backend/internal/advisory"
	"restoration-portal/registry-backend/internal/auth"
)

// Handler exposes the registry over HTTP
type Handler struct {
	ledger      *ProjectLedger
	coordinator *IssuanceCoordinator
	advisor     *advisory.Advisor
	advisories  AdvisoryStore
	audit       *AuditTrail
	logger      *zap.Logger
}

// NewHandler creates a registry HTTP handler
func NewHandler(
	ledger *ProjectLedger,
	coordinator *IssuanceCoordinator,
	advisor *advisory.Advisor,
	advisories AdvisoryStore,
	audit *AuditTrail,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		ledger:      ledger,
		coordinator: coordinator,
		advisor:     advisor,
		advisories:  advisories,
		audit:       audit,
		logger:      logger,
	}
}

// RegisterRoutes attaches registry routes to a router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	{
		projects.POST("", h.Register)
		projects.GET("/:id", h.GetProject)
		projects.GET("/:id/audit", h.GetAuditTrail)
		projects.POST("/:id/verify", h.Issue)
		projects.POST("/:id/begin-verification", h.BeginVerification)
		projects.POST("/:id/abort-verification", h.AbortVerification)
		projects.POST("/:id/reject", h.Reject)
		projects.POST("/:id/lock", h.Lock)
		projects.POST("/:id/unlock", h.Unlock)
		projects.POST("/:id/advisory", h.SubmitAdvisory)
		projects.GET("/:id/advisory", h.GetAdvisory)
	}
	rg.GET("/projects", h.ListProjects)
	rg.GET("/audit/recent", h.RecentAudit)
}

// Register handles project submission
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.ledger.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// GetProject returns the full project view: record, issuance, audit trail
func (h *Handler) GetProject(c *gin.Context) {
	view, err := h.ledger.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project":             view.Project,
		"issuance":            view.Issuance,
		"audit":               view.Audit,
		"allowed_transitions": h.ledger.AllowedTransitions(view.Project.Status),
	})
}

// ListProjects returns projects filtered by submitter or status
func (h *Handler) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()

	if submitter := c.Query("submitter"); submitter != "" {
		projects, err := h.ledger.BySubmitter(ctx, submitter)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
		return
	}
	if status := c.Query("status"); status != "" {
		projects, err := h.ledger.ByStatus(ctx, Status(status))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "submitter or status query parameter is required"})
}

type issueRequest struct {
	CreditedAmount float64 `json:"credited_amount"`
	MetadataRef    string  `json:"metadata_ref"`
}

// Issue runs the full two-asset issuance for a pending project
func (h *Handler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.coordinator.Issue(c.Request.Context(), c.Param("id"), auth.ActorFrom(c), req.CreditedAmount, req.MetadataRef)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Partial failures surface distinctly so operational tooling can alert
	// on them separately from retryable rollbacks.
	status := http.StatusOK
	if result.Outcome == OutcomePartialFailure {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// BeginVerification claims a pending project without issuing
func (h *Handler) BeginVerification(c *gin.Context) {
	err := h.ledger.BeginVerification(c.Request.Context(), c.Param("id"), auth.ActorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusVerifying})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// AbortVerification rolls a verifying project back to pending
func (h *Handler) AbortVerification(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ledger.AbortVerification(c.Request.Context(), c.Param("id"), auth.ActorFrom(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusPending})
}

// Reject moves a pending project to rejected
func (h *Handler) Reject(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ledger.Reject(c.Request.Context(), c.Param("id"), auth.ActorFrom(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusRejected})
}

// Lock freezes a project for dispute handling
func (h *Handler) Lock(c *gin.Context) {
	if err := h.ledger.Lock(c.Request.Context(), c.Param("id"), auth.ActorFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusLocked})
}

// Unlock restores a locked project to its prior status
func (h *Handler) Unlock(c *gin.Context) {
	if err := h.ledger.Unlock(c.Request.Context(), c.Param("id"), auth.ActorFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	project, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": project.Status})
}

// GetAuditTrail returns the ordered audit trail for a project
func (h *Handler) GetAuditTrail(c *gin.Context) {
	entries, err := h.audit.ByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": entries})
}

// RecentAudit returns the newest audit entries across all projects
func (h *Handler) RecentAudit(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": entries})
}

type advisoryRequest struct {
	Vision     advisory.Signal `json:"vision"`
	Vegetation advisory.Signal `json:"vegetation"`
}

// SubmitAdvisory merges the two analyzer scores and stores the
// recommendation alongside the project for verifier UX
func (h *Handler) SubmitAdvisory(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := h.ledger.Get(c.Request.Context(), projectID); err != nil {
		h.respondError(c, err)
		return
	}

	var req advisoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recommendation := h.advisor.Recommend(req.Vision, req.Vegetation)
	record := &AdvisoryRecord{
		ProjectID:       projectID,
		VisionScore:     req.Vision.Score,
		VegetationScore: req.Vegetation.Score,
		Recommendation:  string(recommendation),
		Details: datatypes.JSON([]byte(`{"vision_anomaly":` + strconv.FormatBool(req.Vision.Anomaly) +
			`,"vegetation_anomaly":` + strconv.FormatBool(req.Vegetation.Anomaly) + `}`)),
		CreatedAt: time.Now(),
	}
	if err := h.advisories.Create(c.Request.Context(), record); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendation": recommendation})
}

// GetAdvisory returns the latest stored recommendation for a project
func (h *Handler) GetAdvisory(c *gin.Context) {
	record, err := h.advisories.LatestByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no advisory recorded"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrDuplicateLocation), errors.Is(err, ErrDuplicateEvidence):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotVerifying),
		errors.Is(err, ErrNotLocked), errors.Is(err, ErrAlreadyLocked),
		errors.Is(err, ErrVerificationInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("registry request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
