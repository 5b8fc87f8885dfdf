// Package handler exposes invite endpoints over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"measurehub_backend/internal/invites/service"
	"measurehub_backend/internal/invites/transport"
	"measurehub_backend/platform/httpkit"
	"measurehub_backend/platform/validator"
)

// Handler handles HTTP requests for invite links.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new invite handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return 0, false
	}
	return id, true
}

// Create issues a new invite link.
// POST /api/v1/admin/invites
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	actor := httpkit.MustGetIdentity(c)
	result, err := h.svc.Create(c.Request.Context(), actor.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// List returns all invite links.
// GET /api/v1/admin/invites
func (h *Handler) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Revoke disables an invite link.
// DELETE /api/v1/admin/invites/:id
func (h *Handler) Revoke(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.svc.Revoke(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// QR renders the invite link as a PNG QR code.
// GET /api/v1/admin/invites/:id/qr
func (h *Handler) QR(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	png, err := h.svc.QRCodePNG(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Redeem consumes an invite token and provisions the caller's account.
// POST /api/v1/invites/redeem
func (h *Handler) Redeem(c *gin.Context) {
	var req transport.RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Redeem(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}
