package dto

import "github.com/noah-isme/rtms-ops-api/internal/models"

// InboxMessageDetail enriches a message with its linked workflow entity.
// Actionable reports whether the recipient may still decide the referenced
// operation stage.
type InboxMessageDetail struct {
	Message    models.InboxMessage `json:"message"`
	Operation  *models.Operation   `json:"operation,omitempty"`
	Alert      *models.AlertRecord `json:"alert,omitempty"`
	Actionable bool                `json:"actionable"`
}
