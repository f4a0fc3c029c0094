package dto

import "github.com/noah-isme/rtms-ops-api/internal/models"

// Well-known keys in a raw device payload. Remaining keys are sensor port
// values keyed by port identifier.
const (
	ReadingKeyNode         = "NodeAdd"
	ReadingKeyOrganization = "OrgID"
)

// IngestResult reports what one telemetry evaluation produced.
type IngestResult struct {
	Issues       []models.Issue      `json:"issues"`
	Alert        *models.AlertRecord `json:"alert,omitempty"`
	Deduplicated bool                `json:"deduplicated"`
}

// NodeData pairs a well with its latest raw reading.
type NodeData struct {
	Well    *models.Well             `json:"well"`
	Reading *models.TelemetryReading `json:"reading,omitempty"`
}
