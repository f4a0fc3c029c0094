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

type alertService interface {
	List(ctx context.Context, claims *models.JWTClaims, query dto.AlertQuery) ([]models.AlertRecord, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AlertRecord, error)
	ApproveByEmployee(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error)
	ApproveByManager(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error)
	ApproveByOwner(ctx context.Context, claims *models.JWTClaims, id string, req dto.AlertDecisionRequest) (*models.AlertRecord, error)
	CloseWithComment(ctx context.Context, claims *models.JWTClaims, id string, req dto.CloseAlertRequest) (*models.AlertRecord, error)
	ConvertToComplaint(ctx context.Context, claims *models.JWTClaims, alertID string, req dto.ConvertComplaintRequest) (*models.Complaint, error)
	ListComplaints(ctx context.Context, claims *models.JWTClaims, query dto.ComplaintQuery) ([]models.Complaint, error)
	CloseComplaint(ctx context.Context, claims *models.JWTClaims, complaintID string) (*models.Complaint, error)
}

// AlertHandler exposes the well-alert workflow and complaint endpoints.
type AlertHandler struct {
	service alertService
}

// NewAlertHandler builds a new handler.
func NewAlertHandler(service alertService) *AlertHandler {
	return &AlertHandler{service: service}
}

// List godoc
// @Summary List well alerts
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param status query string false "Alert status"
// @Param wellNumber query string false "Well number"
// @Param sequenceNumber query int false "Sequence number"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	query := dto.AlertQuery{
		Status:         models.AlertStatus(c.Query("status")),
		WellNumber:     c.Query("wellNumber"),
		SequenceNumber: queryInt64(c, "sequenceNumber"),
		Page:           queryInt(c, "page"),
		PageSize:       queryInt(c, "pageSize"),
	}
	alerts, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Get godoc
// @Summary Get one alert
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id} [get]
func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// ApproveByEmployee godoc
// @Summary Record the employee approval stage
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param payload body dto.AlertDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/approve/employee [post]
func (h *AlertHandler) ApproveByEmployee(c *gin.Context) {
	h.approve(c, h.service.ApproveByEmployee)
}

// ApproveByManager godoc
// @Summary Record the manager approval stage
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param payload body dto.AlertDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/approve/manager [post]
func (h *AlertHandler) ApproveByManager(c *gin.Context) {
	h.approve(c, h.service.ApproveByManager)
}

// ApproveByOwner godoc
// @Summary Record the owner approval stage
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param payload body dto.AlertDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/approve/owner [post]
func (h *AlertHandler) ApproveByOwner(c *gin.Context) {
	h.approve(c, h.service.ApproveByOwner)
}

func (h *AlertHandler) approve(c *gin.Context, fn func(context.Context, *models.JWTClaims, string, dto.AlertDecisionRequest) (*models.AlertRecord, error)) {
	var req dto.AlertDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	alert, err := fn(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// CloseWithComment godoc
// @Summary Close a pending alert with a comment
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param payload body dto.CloseAlertRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/close [post]
func (h *AlertHandler) CloseWithComment(c *gin.Context) {
	var req dto.CloseAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid close payload"))
		return
	}
	alert, err := h.service.CloseWithComment(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// ConvertToComplaint godoc
// @Summary Raise a complaint from an alert
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param payload body dto.ConvertComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Router /alerts/{id}/complaint [post]
func (h *AlertHandler) ConvertToComplaint(c *gin.Context) {
	var req dto.ConvertComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}
	complaint, err := h.service.ConvertToComplaint(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// ListComplaints godoc
// @Summary List complaints the caller is a party to
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param status query string false "Complaint status"
// @Param department query string false "Department"
// @Param sequenceNumber query int false "Sequence number"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *AlertHandler) ListComplaints(c *gin.Context) {
	query := dto.ComplaintQuery{
		SequenceNumber: queryInt64(c, "sequenceNumber"),
		Department:     c.Query("department"),
		Status:         models.ComplaintStatus(c.Query("status")),
		Page:           queryInt(c, "page"),
		PageSize:       queryInt(c, "pageSize"),
	}
	complaints, err := h.service.ListComplaints(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, nil)
}

// CloseComplaint godoc
// @Summary Close a complaint
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/close [post]
func (h *AlertHandler) CloseComplaint(c *gin.Context) {
	complaint, err := h.service.CloseComplaint(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}
