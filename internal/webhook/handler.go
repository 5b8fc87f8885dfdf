package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"measurehub_backend/platform/logger"
)

// Handler accepts CRM webhook deliveries. Everything answers 200: the CRM
// treats any other status as a signal to hammer the endpoint with retries,
// and our own retry queue handles redelivery far more politely.
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates the webhook HTTP handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// HandleCRM processes one CRM webhook delivery.
// POST /webhooks/crm
func (h *Handler) HandleCRM(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("webhook body unreadable", "error", err.Error())
		c.JSON(http.StatusOK, Result{Status: "error", Message: "unreadable body"})
		return
	}

	// Empty deliveries are the CRM's health probe.
	if len(body) == 0 {
		c.JSON(http.StatusOK, Result{Status: "ok", Message: "empty webhook accepted"})
		return
	}

	p, err := parsePayload(c.ContentType(), body)
	if err != nil {
		h.log.Error("webhook parse failed", "error", err.Error(), "contentType", c.ContentType())
		c.JSON(http.StatusOK, Result{Status: "error", Message: "parse error"})
		return
	}
	if p.empty() {
		c.JSON(http.StatusOK, Result{Status: "ignored", Message: "no lead entries"})
		return
	}

	result := h.service.Process(c.Request.Context(), p)
	c.JSON(http.StatusOK, result)
}
