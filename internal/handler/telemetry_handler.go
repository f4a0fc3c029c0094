package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
	"github.com/noah-isme/rtms-ops-api/pkg/response"
)

type telemetryService interface {
	Ingest(ctx context.Context, payload map[string]string) (*dto.IngestResult, error)
	NodeData(ctx context.Context, claims *models.JWTClaims) ([]dto.NodeData, error)
	LatestReading(ctx context.Context, claims *models.JWTClaims, nodeID string) (*models.TelemetryReading, error)
}

// TelemetryHandler exposes device ingest and reading endpoints. Ingest is
// called by field devices, not interactive users, so it sits outside the
// JWT-protected group.
type TelemetryHandler struct {
	service telemetryService
}

// NewTelemetryHandler builds a new handler.
func NewTelemetryHandler(service telemetryService) *TelemetryHandler {
	return &TelemetryHandler{service: service}
}

// Ingest godoc
// @Summary Ingest one device reading
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Raw device payload"
// @Success 200 {object} response.Envelope
// @Router /telemetry [post]
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid telemetry payload"))
		return
	}
	result, err := h.service.Ingest(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// NodeData godoc
// @Summary List wells with their latest readings
// @Tags Telemetry
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /telemetry/nodes [get]
func (h *TelemetryHandler) NodeData(c *gin.Context) {
	data, err := h.service.NodeData(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// LatestReading godoc
// @Summary Latest raw reading for one node
// @Tags Telemetry
// @Produce json
// @Security BearerAuth
// @Param nodeId path string true "Node address"
// @Success 200 {object} response.Envelope
// @Router /telemetry/nodes/{nodeId} [get]
func (h *TelemetryHandler) LatestReading(c *gin.Context) {
	reading, err := h.service.LatestReading(c.Request.Context(), claimsFromContext(c), c.Param("nodeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reading, nil)
}
