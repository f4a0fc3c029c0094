package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
)

type telemetryStore interface {
	Insert(ctx context.Context, reading *models.TelemetryReading) error
	LatestForNode(ctx context.Context, nodeID string) (*models.TelemetryReading, error)
	LatestPerNode(ctx context.Context, organization string) ([]models.TelemetryReading, error)
}

type wellReader interface {
	FindByNodeID(ctx context.Context, nodeID string) (*models.Well, error)
	ListByOrganization(ctx context.Context, organization string) ([]models.Well, error)
}

type alertCreator interface {
	Create(ctx context.Context, alert *models.AlertRecord) error
	LastCreatedForNode(ctx context.Context, nodeID string) (*time.Time, error)
}

type dedupCache interface {
	ReserveAlertSlot(ctx context.Context, nodeID string, window time.Duration) (bool, error)
	ReleaseAlertSlot(ctx context.Context, nodeID string) error
}

type wellAlertNotifier interface {
	NotifyWellAlert(ctx context.Context, well *models.Well, issues []models.Issue, alert *models.AlertRecord)
}

type alertMetrics interface {
	RecordAlertCreated()
	RecordAlertDeduplicated()
}

// TelemetryService ingests raw device readings, evaluates them against
// per-well thresholds and opens alert records. Alert records are
// deduplicated per node within a rolling window; outbound notifications
// are sent for every reading with issues regardless of dedup.
type TelemetryService struct {
	readings    telemetryStore
	wells       wellReader
	alerts      alertCreator
	cache       dedupCache
	notifier    wellAlertNotifier
	metrics     alertMetrics
	dedupWindow time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewTelemetryService constructs the service. Cache, notifier and metrics
// may be nil.
func NewTelemetryService(readings telemetryStore, wells wellReader, alerts alertCreator, cache dedupCache, notifier wellAlertNotifier, metrics alertMetrics, dedupWindow time.Duration, logger *zap.Logger) *TelemetryService {
	if dedupWindow <= 0 {
		dedupWindow = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryService{
		readings:    readings,
		wells:       wells,
		alerts:      alerts,
		cache:       cache,
		notifier:    notifier,
		metrics:     metrics,
		dedupWindow: dedupWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest processes one raw device payload. The payload carries the node
// address plus port values keyed by port identifier; unknown nodes are
// rejected, everything else is best-effort around the core evaluation.
func (s *TelemetryService) Ingest(ctx context.Context, payload map[string]string) (*dto.IngestResult, error) {
	nodeID := payload[dto.ReadingKeyNode]
	if nodeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payload is missing the node address")
	}

	well, err := s.wells.FindByNodeID(ctx, nodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no well is bound to this node")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve well")
	}

	s.storeReading(ctx, well, payload)

	issues := EvaluateThresholds(well.Parameters, payload)
	result := &dto.IngestResult{Issues: issues}
	if len(issues) == 0 {
		return result, nil
	}

	if s.reserveSlot(ctx, nodeID) {
		alert := &models.AlertRecord{
			OrganizationName: well.OrganizationName,
			NodeID:           well.NodeID,
			WellNumber:       well.WellNumber,
			Location:         well.Location,
			Installation:     well.Installation,
			WellType:         well.WellType,
			Issues:           issues,
		}
		if err := s.alerts.Create(ctx, alert); err != nil {
			s.releaseSlot(ctx, nodeID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alert")
		}
		result.Alert = alert
		if s.metrics != nil {
			s.metrics.RecordAlertCreated()
		}
	} else {
		result.Deduplicated = true
		if s.metrics != nil {
			s.metrics.RecordAlertDeduplicated()
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyWellAlert(ctx, well, issues, result.Alert)
	}
	return result, nil
}

// NodeData returns every well of the caller's organization paired with its
// latest raw reading.
func (s *TelemetryService) NodeData(ctx context.Context, claims *models.JWTClaims) ([]dto.NodeData, error) {
	wells, err := s.wells.ListByOrganization(ctx, claims.OrganizationName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list wells")
	}
	readings, err := s.readings.LatestPerNode(ctx, claims.OrganizationName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load readings")
	}

	latest := make(map[string]*models.TelemetryReading, len(readings))
	for i := range readings {
		latest[readings[i].NodeID] = &readings[i]
	}

	data := make([]dto.NodeData, 0, len(wells))
	for i := range wells {
		data = append(data, dto.NodeData{
			Well:    &wells[i],
			Reading: latest[wells[i].NodeID],
		})
	}
	return data, nil
}

// LatestReading returns the newest raw payload for one node of the
// caller's organization.
func (s *TelemetryService) LatestReading(ctx context.Context, claims *models.JWTClaims, nodeID string) (*models.TelemetryReading, error) {
	well, err := s.wells.FindByNodeID(ctx, nodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no well is bound to this node")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve well")
	}
	if well.OrganizationName != claims.OrganizationName {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no well is bound to this node")
	}
	reading, err := s.readings.LatestForNode(ctx, nodeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reading")
	}
	if reading == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "node has not reported yet")
	}
	return reading, nil
}

// storeReading archives the raw payload. Losing a history row never fails
// the ingest.
func (s *TelemetryService) storeReading(ctx context.Context, well *models.Well, payload map[string]string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode telemetry payload", zap.String("node_id", well.NodeID), zap.Error(err))
		return
	}
	reading := &models.TelemetryReading{
		NodeID:           well.NodeID,
		OrganizationName: well.OrganizationName,
		Data:             raw,
	}
	if err := s.readings.Insert(ctx, reading); err != nil {
		s.logger.Warn("failed to store telemetry reading", zap.String("node_id", well.NodeID), zap.Error(err))
	}
}

// reserveSlot decides whether a new alert record may be opened for the
// node. Redis holds the authoritative reservation; when it is down the
// decision falls back to the newest persisted alert.
func (s *TelemetryService) reserveSlot(ctx context.Context, nodeID string) bool {
	if s.cache != nil {
		reserved, err := s.cache.ReserveAlertSlot(ctx, nodeID, s.dedupWindow)
		if err == nil {
			return reserved
		}
		s.logger.Warn("alert dedup cache unavailable, using persisted fallback",
			zap.String("node_id", nodeID), zap.Error(err))
	}

	lastCreated, err := s.alerts.LastCreatedForNode(ctx, nodeID)
	if err != nil {
		s.logger.Warn("failed to load last alert for dedup, allowing alert",
			zap.String("node_id", nodeID), zap.Error(err))
		return true
	}
	return shouldPersistAlert(lastCreated, s.now().UTC(), s.dedupWindow)
}

func (s *TelemetryService) releaseSlot(ctx context.Context, nodeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ReleaseAlertSlot(ctx, nodeID); err != nil {
		s.logger.Warn("failed to release alert slot", zap.String("node_id", nodeID), zap.Error(err))
	}
}
