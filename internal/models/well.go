package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ThresholdCondition selects the comparison direction for an alert rule.
type ThresholdCondition string

const (
	ConditionLow  ThresholdCondition = "low"
	ConditionHigh ThresholdCondition = "high"
)

// ThresholdRule is one configured alert boundary for a sensor port.
type ThresholdRule struct {
	AlertValue  float64            `json:"alertValue"`
	Condition   ThresholdCondition `json:"condition"`
	Description string             `json:"description"`
}

// ThresholdParameter configures normal and critical rules for one port of a
// monitored node. Immutable input to threshold evaluation.
type ThresholdParameter struct {
	Port     string        `json:"port"`
	Normal   ThresholdRule `json:"normal"`
	Critical ThresholdRule `json:"critical"`
}

// ThresholdParameterList stores parameters as a JSONB column.
type ThresholdParameterList []ThresholdParameter

// Value implements driver.Valuer.
func (l ThresholdParameterList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ThresholdParameterList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported threshold parameter source %T", src)
	}
}

// Well is one monitored field installation bound to a telemetry node.
type Well struct {
	ID               string                 `db:"id" json:"id"`
	OrganizationName string                 `db:"organization_name" json:"organizationName"`
	WellNumber       string                 `db:"well_number" json:"wellNumber"`
	NodeID           string                 `db:"node_id" json:"nodeId"`
	Location         string                 `db:"location" json:"location"`
	Installation     string                 `db:"installation" json:"installation"`
	WellType         string                 `db:"well_type" json:"wellType"`
	Flowing          bool                   `db:"flowing" json:"flowing"`
	Parameters       ThresholdParameterList `db:"parameters" json:"parameters"`
	CreatedAt        time.Time              `db:"created_at" json:"createdAt"`
}
