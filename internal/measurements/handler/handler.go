package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/internal/measurements/orchestrator"
	"measurehub_backend/internal/measurements/service"
	"measurehub_backend/internal/measurements/transport"
	"measurehub_backend/platform/httpkit"
	"measurehub_backend/platform/validator"
)

// Handler handles HTTP requests for measurement jobs. Transition endpoints
// build an inbound event and push it through the orchestrator, the same path
// webhook events take.
type Handler struct {
	svc  *service.Service
	orch *orchestrator.Orchestrator
	val  *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a measurements handler.
func New(svc *service.Service, orch *orchestrator.Orchestrator, val *validator.Validator) *Handler {
	return &Handler{svc: svc, orch: orch, val: val}
}

func pathLeadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("leadID"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return 0, false
	}
	return id, true
}

// List retrieves measurements with optional status/measurer filters.
// GET /api/v1/measurements
func (h *Handler) List(c *gin.Context) {
	var req transport.ListMeasurementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get retrieves one measurement by external lead id.
// GET /api/v1/measurements/:leadID
func (h *Handler) Get(c *gin.Context) {
	leadID, ok := pathLeadID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByLeadID(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Confirm marks the measurement confirmed by the calling user.
// POST /api/v1/measurements/:leadID/confirm
func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, domain.EventConfirmed)
}

// Complete marks a confirmed measurement completed.
// POST /api/v1/measurements/:leadID/complete
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, domain.EventCompleted)
}

// Cancel cancels a non-terminal measurement.
// POST /api/v1/measurements/:leadID/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, domain.EventCancelled)
}

func (h *Handler) transition(c *gin.Context, kind domain.EventKind) {
	leadID, ok := pathLeadID(c)
	if !ok {
		return
	}
	actor := httpkit.MustGetIdentity(c).UserID()

	outcome, err := h.orch.Handle(c.Request.Context(), domain.InboundEvent{
		Kind:           kind,
		ExternalLeadID: leadID,
		ActorUserID:    &actor,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOutcomeResponse(outcome))
}

// Reassign hands the measurement to another measurer, or back to the
// resolver when no target is given.
// POST /api/v1/measurements/:leadID/reassign
func (h *Handler) Reassign(c *gin.Context) {
	leadID, ok := pathLeadID(c)
	if !ok {
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor := httpkit.MustGetIdentity(c).UserID()

	outcome, err := h.orch.Handle(c.Request.Context(), domain.InboundEvent{
		Kind:           domain.EventReassigned,
		ExternalLeadID: leadID,
		ActorUserID:    &actor,
		NewMeasurerID:  req.NewMeasurerID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOutcomeResponse(outcome))
}
