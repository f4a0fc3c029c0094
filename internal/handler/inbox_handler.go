package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	"github.com/noah-isme/rtms-ops-api/pkg/response"
)

type inboxService interface {
	ListMessages(ctx context.Context, claims *models.JWTClaims) ([]models.InboxMessage, error)
	MessageDetail(ctx context.Context, claims *models.JWTClaims, id string) (*dto.InboxMessageDetail, error)
}

// InboxHandler exposes the caller's notification inbox.
type InboxHandler struct {
	service inboxService
}

// NewInboxHandler builds a new handler.
func NewInboxHandler(service inboxService) *InboxHandler {
	return &InboxHandler{service: service}
}

// List godoc
// @Summary List inbox messages
// @Tags Inbox
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /inbox [get]
func (h *InboxHandler) List(c *gin.Context) {
	messages, err := h.service.ListMessages(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Detail godoc
// @Summary Get one inbox message with its workflow entity
// @Tags Inbox
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Router /inbox/{id} [get]
func (h *InboxHandler) Detail(c *gin.Context) {
	detail, err := h.service.MessageDetail(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
