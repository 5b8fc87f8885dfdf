package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"measurehub_backend/internal/directory/service"
	"measurehub_backend/internal/directory/transport"
	"measurehub_backend/platform/httpkit"
	"measurehub_backend/platform/validator"
)

// Handler handles HTTP requests for the measurer directory.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new directory handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

// ListUsers retrieves users with optional filters.
// GET /api/v1/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	var req transport.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListUsers(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateUser provisions a new user.
// POST /api/v1/admin/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req transport.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateUser(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// UpdateUser applies a partial user update.
// PATCH /api/v1/admin/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.UpdateUser(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteUser removes a user and its directory references.
// DELETE /api/v1/admin/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteUser(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListZones retrieves all zones.
// GET /api/v1/admin/zones
func (h *Handler) ListZones(c *gin.Context) {
	result, err := h.svc.ListZones(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetZone retrieves a zone with its members.
// GET /api/v1/admin/zones/:id
func (h *Handler) GetZone(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetZone(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateZone registers a new zone.
// POST /api/v1/admin/zones
func (h *Handler) CreateZone(c *gin.Context) {
	var req transport.CreateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateZone(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// DeleteZone removes a zone.
// DELETE /api/v1/admin/zones/:id
func (h *Handler) DeleteZone(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteZone(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// AddZoneMember adds a user to a zone.
// POST /api/v1/admin/zones/:id/members
func (h *Handler) AddZoneMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.AddZoneMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.AddZoneMember(c.Request.Context(), id, req.UserID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveZoneMember removes a user from a zone.
// DELETE /api/v1/admin/zones/:id/members/:userID
func (h *Handler) RemoveZoneMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.RemoveZoneMember(c.Request.Context(), id, userID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMeasurerNames retrieves all dealer names.
// GET /api/v1/admin/measurer-names
func (h *Handler) ListMeasurerNames(c *gin.Context) {
	result, err := h.svc.ListMeasurerNames(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateMeasurerName registers a dealer name.
// POST /api/v1/admin/measurer-names
func (h *Handler) CreateMeasurerName(c *gin.Context) {
	var req transport.CreateMeasurerNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateMeasurerName(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// DeleteMeasurerName removes a dealer name.
// DELETE /api/v1/admin/measurer-names/:id
func (h *Handler) DeleteMeasurerName(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteMeasurerName(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignMeasurerName binds a dealer name to a user.
// PUT /api/v1/admin/measurer-names/:id/assignment
func (h *Handler) AssignMeasurerName(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transport.AssignMeasurerNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if httpkit.HandleError(c, h.svc.AssignMeasurerName(c.Request.Context(), id, req.UserID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// UnassignMeasurerName removes the binding of a dealer name.
// DELETE /api/v1/admin/measurer-names/:id/assignment
func (h *Handler) UnassignMeasurerName(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.UnassignMeasurerName(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}
