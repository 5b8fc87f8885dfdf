package exports

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"measurehub_backend/internal/measurements/domain"
	"measurehub_backend/platform/httpkit"
	"measurehub_backend/platform/validator"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader stores export artifacts and hands out download links.
// Implemented by the MinIO storage client.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	PresignedDownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// ExportMeasurementsRequest narrows the exported set via query parameters.
type ExportMeasurementsRequest struct {
	Status     *string `form:"status" validate:"omitempty,oneof=assigned confirmed completed cancelled"`
	MeasurerID *int64  `form:"measurerId" validate:"omitempty,gt=0"`
}

// ExportMeasurementsResponse carries the presigned download link.
type ExportMeasurementsResponse struct {
	FileKey   string `json:"fileKey"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
	Rows      int    `json:"rows"`
}

// Handler handles export requests.
type Handler struct {
	exporter *Exporter
	uploader Uploader
	val      *validator.Validator
}

// NewHandler creates a new export handler.
func NewHandler(exporter *Exporter, uploader Uploader, val *validator.Validator) *Handler {
	return &Handler{exporter: exporter, uploader: uploader, val: val}
}

// ExportMeasurements builds an XLSX of the matching jobs, uploads it and
// responds with a presigned download URL.
// POST /api/v1/exports/measurements
func (h *Handler) ExportMeasurements(c *gin.Context) {
	var req ExportMeasurementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	filter := Filter{MeasurerID: req.MeasurerID}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		filter.Status = &status
	}

	ctx := c.Request.Context()
	workbook, rows, err := h.exporter.Workbook(ctx, filter)
	if httpkit.HandleError(c, err) {
		return
	}
	defer func() {
		_ = workbook.Close()
	}()

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "render workbook", nil)
		return
	}

	key := fmt.Sprintf("measurements/%s_%s.xlsx",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])

	if err := h.uploader.Upload(ctx, key, contentTypeXLSX, buf, int64(buf.Len())); err != nil {
		httpkit.Error(c, http.StatusBadGateway, "store export", nil)
		return
	}

	url, expiresAt, err := h.uploader.PresignedDownloadURL(ctx, key)
	if err != nil {
		httpkit.Error(c, http.StatusBadGateway, "presign export", nil)
		return
	}

	httpkit.OK(c, ExportMeasurementsResponse{
		FileKey:   key,
		URL:       url,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Rows:      rows,
	})
}
