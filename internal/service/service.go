package service

import (
	"context"
	"time"

	"crisisrelay/internal/domain"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go

// Sender is the fan-out side of the connection hub.
type Sender interface {
	Send(connectionID string, env domain.Envelope) bool
	FanOut(conns []domain.Connection, env domain.Envelope) int
}

// ConnectionRegistry is the registry as the services see it.
type ConnectionRegistry interface {
	Register(conn domain.Connection)
	Unregister(connectionID string) (domain.Connection, bool)
	Get(connectionID string) (domain.Connection, bool)
	CountConnected() int
	IsConnected(userID string) bool
	Snapshot() []domain.Connection
	SnapshotRole(role domain.Role) []domain.Connection
}

// LocationRepository is the last-write-wins position store.
type LocationRepository interface {
	Upsert(sample domain.LocationSample)
	AllCurrent() []domain.LocationSample
	EvictStaleBefore(cutoff time.Time) int
	Remove(userID string) bool
}

type PresenceService interface {
	Register(ctx context.Context, connectionID string, req domain.RegisterRequest) (domain.RegisteredResponse, error)
	Disconnect(ctx context.Context, connectionID string)
	Identity(connectionID string) (domain.Connection, bool)
	CountConnected() int
	IsConnected(userID string) bool
}

type AlertService interface {
	Broadcast(ctx context.Context, broadcastedBy string, req domain.BroadcastAlertRequest) (domain.AlertBroadcastedResponse, error)
	SendSOS(ctx context.Context, sos domain.SOSAlert) (int, error)
}

type LocationService interface {
	Ingest(ctx context.Context, sample domain.LocationSample) error
	Current(ctx context.Context) []domain.LocationSample
	EvictStale(ctx context.Context) int
}

type ReportService interface {
	Submit(ctx context.Context, connectionID string, report domain.IncidentReport) (domain.ReportSubmittedResponse, error)
}

type Service struct {
	PresenceService PresenceService
	AlertService    AlertService
	LocationService LocationService
	ReportService   ReportService
}

func NewService(
	presenceService PresenceService,
	alertService AlertService,
	locationService LocationService,
	reportService ReportService,
) *Service {
	return &Service{
		PresenceService: presenceService,
		AlertService:    alertService,
		LocationService: locationService,
		ReportService:   reportService,
	}
}
