package components

import (
	"context"
	"log/slog"
	"os"
	"time"

	"crisisrelay/internal/api"
	"crisisrelay/internal/config"
	"crisisrelay/internal/hub"
	"crisisrelay/internal/service"
	"crisisrelay/internal/storage/memory"
	"crisisrelay/internal/workers"
	"crisisrelay/pkg/logger"
)

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Registry   *memory.Registry
	Locations  *memory.LocationStore
	Hub        *hub.Hub
	Sweeper    *workers.LocationSweeper
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing in-memory state")
	registry := memory.NewRegistry()
	locations := memory.NewLocationStore()
	h := hub.NewHub(cfg.Ws.SubscriberBuffer, logger)

	presenceSvc := service.NewPresenceService(registry, locations, logger)
	alertSvc := service.NewAlertService(registry, h, logger)
	locationSvc := service.NewLocationService(locations, registry, h, cfg.Location.StalenessWindow, logger)
	reportSvc := service.NewReportService(registry, h, logger)

	srv := service.NewService(presenceSvc, alertSvc, locationSvc, reportSvc)

	sweeper := workers.NewLocationSweeper(locationSvc, cfg.Location.SweepPeriod, logger)

	httpServer := api.NewServer(cfg, logger, srv, h)
	logger.Info("Initialized server")

	return &Components{
		logger:     logger,
		HttpServer: httpServer,
		Registry:   registry,
		Locations:  locations,
		Hub:        h,
		Sweeper:    sweeper,
	}, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Component shutdown started")

	c.Registry.Clear()

	c.logger.Info("All components shut down",
		slog.Duration("latency", time.Since(start)))
}
