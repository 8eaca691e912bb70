package service

import (
	"context"
	"log/slog"
	"time"

	"crisisrelay/internal/domain"
	"crisisrelay/pkg/e"
	"crisisrelay/pkg/validator"
)

type presenceService struct {
	registry  ConnectionRegistry
	locations LocationRepository
	logger    *slog.Logger
}

func NewPresenceService(registry ConnectionRegistry, locations LocationRepository, logger *slog.Logger) PresenceService {
	return &presenceService{
		registry:  registry,
		locations: locations,
		logger:    logger,
	}
}

func (s *presenceService) Register(ctx context.Context, connectionID string, req domain.RegisterRequest) (domain.RegisteredResponse, error) {
	if err := validator.ValidateStruct(&req); err != nil {
		s.logger.Warn("register rejected",
			slog.String("connection_id", connectionID),
			slog.Any("error", err),
		)
		return domain.RegisteredResponse{}, e.Wrap("register", e.ErrInvalidInput)
	}

	s.registry.Register(domain.Connection{
		ConnectionID: connectionID,
		UserID:       req.UserID,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		ConnectedAt:  time.Now().UTC(),
	})

	s.logger.Info("client registered",
		slog.String("connection_id", connectionID),
		slog.String("user_id", req.UserID),
		slog.String("role", string(req.Role)),
		slog.Int("connected", s.registry.CountConnected()),
	)

	return domain.RegisteredResponse{SocketID: connectionID}, nil
}

// Disconnect also evicts the citizen's location immediately so officials do
// not keep seeing a marker for someone who is definitely gone.
func (s *presenceService) Disconnect(ctx context.Context, connectionID string) {
	conn, ok := s.registry.Unregister(connectionID)
	if !ok {
		return
	}
	if conn.Role == domain.RoleCitizen && !s.registry.IsConnected(conn.UserID) {
		if s.locations.Remove(conn.UserID) {
			s.logger.Debug("location evicted on disconnect", slog.String("user_id", conn.UserID))
		}
	}
	s.logger.Info("client disconnected",
		slog.String("connection_id", connectionID),
		slog.String("user_id", conn.UserID),
		slog.Int("connected", s.registry.CountConnected()),
	)
}

func (s *presenceService) Identity(connectionID string) (domain.Connection, bool) {
	return s.registry.Get(connectionID)
}

func (s *presenceService) CountConnected() int {
	return s.registry.CountConnected()
}

func (s *presenceService) IsConnected(userID string) bool {
	return s.registry.IsConnected(userID)
}
