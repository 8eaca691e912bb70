package service

import (
	"context"
	"log/slog"
	"time"

	"crisisrelay/internal/domain"
	"crisisrelay/pkg/e"
	"crisisrelay/pkg/validator"
)

type locationService struct {
	store    LocationRepository
	registry ConnectionRegistry
	sender   Sender
	window   time.Duration
	logger   *slog.Logger
}

func NewLocationService(
	store LocationRepository,
	registry ConnectionRegistry,
	sender Sender,
	stalenessWindow time.Duration,
	logger *slog.Logger,
) LocationService {
	if stalenessWindow <= 0 {
		stalenessWindow = 5 * time.Minute
	}
	return &locationService{
		store:    store,
		registry: registry,
		sender:   sender,
		window:   stalenessWindow,
		logger:   logger,
	}
}

// Ingest stores the sample (arrival-order last-write-wins) and relays it to
// every official currently connected.
func (s *locationService) Ingest(ctx context.Context, sample domain.LocationSample) error {
	if err := validator.ValidateStruct(&sample); err != nil {
		s.logger.Warn("location sample rejected",
			slog.String("user_id", sample.UserID),
			slog.Any("error", err),
		)
		return e.Wrap("citizen:location", e.ErrInvalidInput)
	}

	s.store.Upsert(sample)

	env, err := domain.NewEnvelope(domain.EventLocationUpdate, sample)
	if err != nil {
		return e.WrapError(ctx, "citizen:location", err)
	}
	officials := s.registry.SnapshotRole(domain.RoleOfficial)
	s.sender.FanOut(officials, env)

	s.logger.Debug("location sample stored",
		slog.String("user_id", sample.UserID),
		slog.Int("officials_notified", len(officials)),
	)
	return nil
}

// Current is a point read for an official's "give me the full current set";
// a snapshot, not a subscription.
func (s *locationService) Current(ctx context.Context) []domain.LocationSample {
	return s.store.AllCurrent()
}

func (s *locationService) EvictStale(ctx context.Context) int {
	cutoff := time.Now().Add(-s.window)
	evicted := s.store.EvictStaleBefore(cutoff)
	if evicted > 0 {
		s.logger.Info("stale locations evicted",
			slog.Int("evicted", evicted),
			slog.Duration("window", s.window),
		)
	}
	return evicted
}
