package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
	"github.com/noah-isme/rtms-ops-api/pkg/response"
)

type operationService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateOperationRequest) (*models.Operation, error)
	DecideStage1(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecideStageRequest) (*models.Operation, error)
	DecideStage2(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecideStageRequest) (*models.Operation, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Operation, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.OperationQuery) ([]models.Operation, error)
	Catalog() []models.ApprovalCatalogEntry
}

// OperationHandler exposes the two-stage operation workflow endpoints.
type OperationHandler struct {
	service operationService
}

// NewOperationHandler builds a new handler.
func NewOperationHandler(service operationService) *OperationHandler {
	return &OperationHandler{service: service}
}

// Create godoc
// @Summary Submit an operation for approval
// @Tags Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateOperationRequest true "Operation payload"
// @Success 201 {object} response.Envelope
// @Router /operations [post]
func (h *OperationHandler) Create(c *gin.Context) {
	var req dto.CreateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid operation payload"))
		return
	}
	operation, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, operation)
}

// DecideStage1 godoc
// @Summary Record the stage 1 decision
// @Tags Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Operation ID"
// @Param payload body dto.DecideStageRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /operations/{id}/stage1 [post]
func (h *OperationHandler) DecideStage1(c *gin.Context) {
	h.decide(c, h.service.DecideStage1)
}

// DecideStage2 godoc
// @Summary Record the stage 2 decision
// @Tags Operations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Operation ID"
// @Param payload body dto.DecideStageRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /operations/{id}/stage2 [post]
func (h *OperationHandler) DecideStage2(c *gin.Context) {
	h.decide(c, h.service.DecideStage2)
}

func (h *OperationHandler) decide(c *gin.Context, fn func(context.Context, *models.JWTClaims, string, dto.DecideStageRequest) (*models.Operation, error)) {
	var req dto.DecideStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	operation, err := fn(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, operation, nil)
}

// Get godoc
// @Summary Get an operation
// @Tags Operations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Operation ID"
// @Success 200 {object} response.Envelope
// @Router /operations/{id} [get]
func (h *OperationHandler) Get(c *gin.Context) {
	operation, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, operation, nil)
}

// List godoc
// @Summary List operations
// @Tags Operations
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma-separated statuses"
// @Param approvalKey query string false "Approval key"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /operations [get]
func (h *OperationHandler) List(c *gin.Context) {
	query := dto.OperationQuery{
		ApprovalKey: c.Query("approvalKey"),
		Page:        queryInt(c, "page"),
		PageSize:    queryInt(c, "pageSize"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(status)
			if trimmed != "" {
				query.Status = append(query.Status, models.OperationStatus(trimmed))
			}
		}
	}
	operations, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, operations, nil)
}

// Catalog godoc
// @Summary List approval-gated operation kinds
// @Tags Operations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /operations/catalog [get]
func (h *OperationHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Catalog(), nil)
}
