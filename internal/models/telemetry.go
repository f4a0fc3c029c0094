package models

import "time"

// TelemetryReading is one raw device payload as received from the field.
type TelemetryReading struct {
	ID               string    `db:"id" json:"id"`
	NodeID           string    `db:"node_id" json:"nodeId"`
	OrganizationName string    `db:"organization_name" json:"organizationName"`
	Data             []byte    `db:"data" json:"data"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}
