package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crisisrelay/internal/domain"
	"crisisrelay/pkg/e"
	"crisisrelay/pkg/validator"
)

type alertService struct {
	registry ConnectionRegistry
	sender   Sender
	logger   *slog.Logger
}

func NewAlertService(registry ConnectionRegistry, sender Sender, logger *slog.Logger) AlertService {
	return &alertService{
		registry: registry,
		sender:   sender,
		logger:   logger,
	}
}

// Broadcast fans the alert out to every connection registered at call time.
// At-most-once: no retry, no replay for clients that join later. The returned
// recipient count is the registry size at the moment of broadcast, advisory
// only.
func (s *alertService) Broadcast(ctx context.Context, broadcastedBy string, req domain.BroadcastAlertRequest) (domain.AlertBroadcastedResponse, error) {
	if err := validator.ValidateStruct(&req); err != nil {
		s.logger.Warn("broadcast rejected", slog.Any("error", err))
		return domain.AlertBroadcastedResponse{}, e.Wrap("broadcast-alert", e.ErrInvalidInput)
	}

	now := time.Now().UTC()
	issuedAt := req.IssuedAt
	if issuedAt == 0 {
		issuedAt = now.UnixMilli()
	}

	alert := domain.Alert{
		ID:            uuid.New(),
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		Type:          req.Type,
		Language:      req.Language,
		IsActive:      req.IsActive,
		Location:      req.Location,
		RadiusKM:      req.Radius,
		IssuedAt:      issuedAt,
		BroadcastedAt: now.UnixMilli(),
		BroadcastedBy: broadcastedBy,
	}

	env, err := domain.NewEnvelope(domain.EventDisasterAlert, alert)
	if err != nil {
		return domain.AlertBroadcastedResponse{}, e.WrapError(ctx, "broadcast-alert", err)
	}

	conns := s.registry.Snapshot()
	recipients := len(conns)
	delivered := s.sender.FanOut(conns, env)

	s.logger.Info("alert broadcast",
		slog.String("alert_id", alert.ID.String()),
		slog.String("severity", string(alert.Severity)),
		slog.String("broadcasted_by", broadcastedBy),
		slog.Int("recipients", recipients),
		slog.Int("delivered", delivered),
	)

	return domain.AlertBroadcastedResponse{
		Alert:          alert,
		RecipientCount: recipients,
	}, nil
}

// SendSOS is the same fire-and-forget fan-out shape, to all roles.
func (s *alertService) SendSOS(ctx context.Context, sos domain.SOSAlert) (int, error) {
	if err := validator.ValidateStruct(&sos); err != nil {
		return 0, e.Wrap("send-sos", e.ErrInvalidInput)
	}
	if sos.Timestamp == 0 {
		sos.Timestamp = time.Now().UTC().UnixMilli()
	}

	env, err := domain.NewEnvelope(domain.EventSOSAlert, sos)
	if err != nil {
		return 0, e.WrapError(ctx, "send-sos", err)
	}

	conns := s.registry.Snapshot()
	s.sender.FanOut(conns, env)

	s.logger.Info("sos alert broadcast",
		slog.String("user_id", sos.UserID),
		slog.Int("recipients", len(conns)),
	)
	return len(conns), nil
}
