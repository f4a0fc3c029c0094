package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	"github.com/noah-isme/rtms-ops-api/internal/service"
	"github.com/noah-isme/rtms-ops-api/pkg/response"
)

type exportService interface {
	Alerts(ctx context.Context, claims *models.JWTClaims, query dto.AlertQuery, format string) (*service.ExportFile, error)
}

// ExportHandler serves alert history downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Alerts godoc
// @Summary Export alert history
// @Tags Exports
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string true "csv or pdf"
// @Param status query string false "Alert status"
// @Param wellNumber query string false "Well number"
// @Success 200 {file} binary
// @Router /exports/alerts [get]
func (h *ExportHandler) Alerts(c *gin.Context) {
	query := dto.AlertQuery{
		Status:         models.AlertStatus(c.Query("status")),
		WellNumber:     c.Query("wellNumber"),
		SequenceNumber: queryInt64(c, "sequenceNumber"),
	}
	file, err := h.service.Alerts(c.Request.Context(), claimsFromContext(c), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
