package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// EvaluateThresholds classifies one raw sensor reading against the
// configured per-port parameters. Ports absent from the reading or carrying
// non-numeric values are skipped; a sensor may legitimately omit a channel.
// The critical rule is checked first and pre-empts the normal rule, so one
// port never yields two issues. Output order follows configuration order.
func EvaluateThresholds(parameters []models.ThresholdParameter, reading map[string]string) []models.Issue {
	issues := make([]models.Issue, 0, len(parameters))
	for _, parameter := range parameters {
		raw, ok := reading[parameter.Port]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}

		if matchesCritical(parameter.Critical, value) {
			issues = append(issues, models.Issue{
				Port:        parameter.Port,
				Value:       value,
				Severity:    models.SeverityCritical,
				Description: parameter.Critical.Description,
			})
			continue
		}

		if matchesNormal(parameter.Normal, value) {
			issues = append(issues, models.Issue{
				Port:        parameter.Port,
				Value:       value,
				Severity:    models.SeverityNormal,
				Description: parameter.Normal.Description,
			})
		}
	}
	return issues
}

func matchesCritical(rule models.ThresholdRule, value float64) bool {
	switch rule.Condition {
	case models.ConditionLow:
		return value <= rule.AlertValue
	case models.ConditionHigh:
		return value > rule.AlertValue
	default:
		return false
	}
}

// matchesNormal differs from critical on the low side: values at or above
// the configured boundary still count as a normal-range notification.
func matchesNormal(rule models.ThresholdRule, value float64) bool {
	switch rule.Condition {
	case models.ConditionLow:
		return value >= rule.AlertValue
	case models.ConditionHigh:
		return value > rule.AlertValue
	default:
		return false
	}
}

// shouldPersistAlert implements the alert dedup window: a new record is
// stored only when the node has no alert yet or the newest one is older
// than the window. Outbound notifications are intentionally not throttled.
func shouldPersistAlert(lastCreatedAt *time.Time, now time.Time, window time.Duration) bool {
	return lastCreatedAt == nil || now.Sub(*lastCreatedAt) > window
}
