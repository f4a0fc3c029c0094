package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

func thresholdParams() []models.ThresholdParameter {
	return []models.ThresholdParameter{
		{
			Port:     "1",
			Normal:   models.ThresholdRule{AlertValue: 60, Condition: models.ConditionHigh, Description: "pressure above normal"},
			Critical: models.ThresholdRule{AlertValue: 80, Condition: models.ConditionHigh, Description: "pressure critical"},
		},
		{
			Port:     "2",
			Normal:   models.ThresholdRule{AlertValue: 20, Condition: models.ConditionLow, Description: "level below normal"},
			Critical: models.ThresholdRule{AlertValue: 10, Condition: models.ConditionLow, Description: "level critical"},
		},
	}
}

func TestEvaluateThresholdsCriticalPreemptsNormal(t *testing.T) {
	issues := EvaluateThresholds(thresholdParams(), map[string]string{"1": "85"})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)
	assert.Equal(t, "1", issues[0].Port)
	assert.Equal(t, 85.0, issues[0].Value)
	assert.Equal(t, "pressure critical", issues[0].Description)
}

func TestEvaluateThresholdsNormalHighExclusiveBoundary(t *testing.T) {
	// exactly at the normal boundary is not a violation on the high side
	issues := EvaluateThresholds(thresholdParams(), map[string]string{"1": "60"})
	assert.Empty(t, issues)

	issues = EvaluateThresholds(thresholdParams(), map[string]string{"1": "61"})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityNormal, issues[0].Severity)
}

func TestEvaluateThresholdsLowConditions(t *testing.T) {
	// at or below the critical value on the low side is critical
	issues := EvaluateThresholds(thresholdParams(), map[string]string{"2": "10"})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)

	// at or above the normal boundary still reports a normal-range issue
	issues = EvaluateThresholds(thresholdParams(), map[string]string{"2": "20"})
	require.Len(t, issues, 1)
	assert.Equal(t, models.SeverityNormal, issues[0].Severity)

	// between critical and normal boundaries nothing fires
	issues = EvaluateThresholds(thresholdParams(), map[string]string{"2": "15"})
	assert.Empty(t, issues)
}

func TestEvaluateThresholdsSkipsAbsentAndUnparseablePorts(t *testing.T) {
	issues := EvaluateThresholds(thresholdParams(), map[string]string{
		"1":       "not-a-number",
		"NodeAdd": "node-7",
	})
	assert.Empty(t, issues)
}

func TestEvaluateThresholdsMultiplePorts(t *testing.T) {
	issues := EvaluateThresholds(thresholdParams(), map[string]string{"1": "90", "2": "5"})
	require.Len(t, issues, 2)
	assert.Equal(t, "1", issues[0].Port)
	assert.Equal(t, "2", issues[1].Port)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)
	assert.Equal(t, models.SeverityCritical, issues[1].Severity)
}

func TestShouldPersistAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	assert.True(t, shouldPersistAlert(nil, now, window))

	recent := now.Add(-10 * time.Minute)
	assert.False(t, shouldPersistAlert(&recent, now, window))

	boundary := now.Add(-window)
	assert.False(t, shouldPersistAlert(&boundary, now, window))

	old := now.Add(-90 * time.Minute)
	assert.True(t, shouldPersistAlert(&old, now, window))
}
