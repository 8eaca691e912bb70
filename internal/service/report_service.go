package service

import (
	"context"
	"log/slog"

	"crisisrelay/internal/domain"
	"crisisrelay/pkg/e"
	"crisisrelay/pkg/validator"
)

type reportService struct {
	registry ConnectionRegistry
	sender   Sender
	logger   *slog.Logger
}

func NewReportService(registry ConnectionRegistry, sender Sender, logger *slog.Logger) ReportService {
	return &reportService{
		registry: registry,
		sender:   sender,
		logger:   logger,
	}
}

// Submit relays a report message verbatim to every official. The server
// keeps no report state, never deduplicates, and never touches the delivery
// status; the sending client owns its transitions. A later message carrying
// the same id (a score update) goes through the same path, and merge-by-id is
// each receiving client's responsibility. The only enrichment is attribution:
// a missing userId is filled from the sending connection's registration.
func (s *reportService) Submit(ctx context.Context, connectionID string, report domain.IncidentReport) (domain.ReportSubmittedResponse, error) {
	if err := validator.ValidateStruct(&report); err != nil {
		s.logger.Warn("report rejected",
			slog.String("connection_id", connectionID),
			slog.Any("error", err),
		)
		return domain.ReportSubmittedResponse{}, e.Wrap("report-incident", e.ErrInvalidInput)
	}

	if report.UserID == "" {
		if conn, ok := s.registry.Get(connectionID); ok {
			report.UserID = conn.UserID
		}
	}

	env, err := domain.NewEnvelope(domain.EventNewIncident, report)
	if err != nil {
		return domain.ReportSubmittedResponse{}, e.WrapError(ctx, "report-incident", err)
	}

	officials := s.registry.SnapshotRole(domain.RoleOfficial)
	s.sender.FanOut(officials, env)

	s.logger.Info("report relayed",
		slog.String("report_id", report.ID),
		slog.String("user_id", report.UserID),
		slog.String("status", string(report.Status)),
		slog.Bool("scored", report.IsScored()),
		slog.Int("officials", len(officials)),
	)

	return domain.ReportSubmittedResponse{Report: report}, nil
}
