package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rtms-ops-api/internal/dto"
	"github.com/noah-isme/rtms-ops-api/internal/models"
	appErrors "github.com/noah-isme/rtms-ops-api/pkg/errors"
	"github.com/noah-isme/rtms-ops-api/pkg/export"
)

type exportAlertSource interface {
	List(ctx context.Context, filter models.AlertFilter) ([]models.AlertRecord, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders alert history into downloadable documents.
type ExportService struct {
	alerts exportAlertSource
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(alerts exportAlertSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		alerts: alerts,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var alertExportHeaders = []string{
	"Sequence", "Well", "Node", "Location", "Status", "Issues", "Created At",
}

// Alerts renders the organization's alert history in the requested format
// ("csv" or "pdf").
func (s *ExportService) Alerts(ctx context.Context, claims *models.JWTClaims, query dto.AlertQuery, format string) (*ExportFile, error) {
	alerts, err := s.alerts.List(ctx, models.AlertFilter{
		OrganizationName: claims.OrganizationName,
		Status:           query.Status,
		WellNumber:       query.WellNumber,
		SequenceNumber:   query.SequenceNumber,
		Limit:            200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts for export")
	}

	dataset := export.Dataset{Headers: alertExportHeaders, Rows: make([]map[string]string, 0, len(alerts))}
	for i := range alerts {
		dataset.Rows = append(dataset.Rows, alertExportRow(&alerts[i]))
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch strings.ToLower(format) {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("alerts-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Well Alerts - %s", claims.OrganizationName))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("alerts-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "export format must be csv or pdf")
	}
}

func alertExportRow(alert *models.AlertRecord) map[string]string {
	issues := make([]string, 0, len(alert.Issues))
	for _, issue := range alert.Issues {
		issues = append(issues, fmt.Sprintf("%s %s=%.2f", issue.Severity, issue.Port, issue.Value))
	}
	return map[string]string{
		"Sequence":   strconv.FormatInt(alert.SequenceNumber, 10),
		"Well":       alert.WellNumber,
		"Node":       alert.NodeID,
		"Location":   alert.Location,
		"Status":     string(alert.Status),
		"Issues":     strings.Join(issues, "; "),
		"Created At": alert.CreatedAt.UTC().Format(time.RFC3339),
	}
}
