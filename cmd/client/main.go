// Demo client for manual testing against a running relay. Connects, registers,
// then either listens for events or performs a one-shot action.
//
//	go run ./cmd/client -url ws://localhost:8080/api/v1/ws -role official -user op1 listen
//	go run ./cmd/client -role citizen -user c1 report -type flood -desc "river rising"
//	go run ./cmd/client -role citizen -user c1 sos -msg "trapped near bridge"
//	go run ./cmd/client -role official -user op1 broadcast -title "Flood warning" -severity high -type flood
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crisisrelay/internal/client"
	"crisisrelay/internal/domain"
	"crisisrelay/pkg/logger"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/api/v1/ws", "relay websocket endpoint")
		role    = flag.String("role", "citizen", "citizen or official")
		userID  = flag.String("user", "demo-user", "user id to register as")
		name    = flag.String("name", "", "display name (defaults to the user id)")
		lat     = flag.Float64("lat", 27.7172, "device latitude")
		lng     = flag.Float64("lng", 85.3240, "device longitude")
		timeout = flag.Duration("timeout", 10*time.Second, "connect/send timeout")
	)
	flag.Parse()

	log := logger.SetupPrettySlog()
	if *name == "" {
		*name = *userID
	}

	c := client.New(client.Config{
		URL: *url,
		Identity: domain.RegisterRequest{
			UserID:      *userID,
			Role:        domain.Role(*role),
			DisplayName: *name,
		},
		Logger:   log,
		Locator:  staticLocator{coords: domain.Coordinates{Lat: *lat, Lng: *lng}},
		Handlers: printHandlers(log),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		log.Error("connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Close()

	if err := run(ctx, c, flag.Args()); err != nil {
		log.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, args []string) error {
	cmd := "listen"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "listen":
		fmt.Println("listening, Ctrl-C to quit")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		return nil

	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		typ := fs.String("type", "other", "incident type")
		desc := fs.String("desc", "", "description")
		loc := fs.String("loc", "", "location text")
		if err := fs.Parse(args); err != nil {
			return err
		}
		got, err := c.SubmitReport(ctx, client.ReportDraft{
			Type:         *typ,
			Description:  *desc,
			LocationText: *loc,
		})
		if err != nil {
			return err
		}
		fmt.Printf("report %s submitted, status=%s\n", got.ID, got.Status)
		return nil

	case "sos":
		fs := flag.NewFlagSet("sos", flag.ExitOnError)
		msg := fs.String("msg", "emergency", "sos message")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.SendSOS(ctx, *msg, nil)

	case "broadcast":
		fs := flag.NewFlagSet("broadcast", flag.ExitOnError)
		title := fs.String("title", "", "alert title")
		severity := fs.String("severity", "moderate", "low, moderate, high or severe")
		typ := fs.String("type", "other", "disaster type")
		radius := fs.Float64("radius", 25, "radius in km")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.BroadcastAlert(ctx, domain.BroadcastAlertRequest{
			Title:    *title,
			Severity: domain.Severity(*severity),
			Type:     *typ,
			IsActive: true,
			Radius:   *radius,
		})

	case "locations":
		if err := c.RequestLocations(ctx); err != nil {
			return err
		}
		// Give the snapshot reply a moment to land on the handler.
		time.Sleep(time.Second)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type staticLocator struct{ coords domain.Coordinates }

func (s staticLocator) Current(ctx context.Context) (domain.Coordinates, error) {
	return s.coords, nil
}

func printHandlers(log *slog.Logger) client.Handlers {
	return client.Handlers{
		OnRegistered: func(r domain.RegisteredResponse) {
			fmt.Printf("<< registered socket=%s\n", r.SocketID)
		},
		OnDisasterAlert: func(a domain.Alert) {
			fmt.Printf("<< ALERT [%s] %s (%s)\n", a.Severity, a.Title, a.Type)
		},
		OnAlertBroadcasted: func(a domain.AlertBroadcastedResponse) {
			fmt.Printf("<< broadcast acknowledged, %d recipients\n", a.RecipientCount)
		},
		OnSOSAlert: func(s domain.SOSAlert) {
			fmt.Printf("<< SOS from %s: %s\n", s.UserID, s.Message)
		},
		OnLocationUpdate: func(s domain.LocationSample) {
			fmt.Printf("<< location %s (%.4f, %.4f)\n", s.UserID, s.Latitude, s.Longitude)
		},
		OnAllLocations: func(samples []domain.LocationSample) {
			fmt.Printf("<< %d citizen locations\n", len(samples))
			for _, s := range samples {
				fmt.Printf("   %s (%.4f, %.4f)\n", s.UserID, s.Latitude, s.Longitude)
			}
		},
		OnNewReport: func(r domain.IncidentReport) {
			fmt.Printf("<< new report %s type=%s from %s\n", r.ID, r.Type, r.UserID)
		},
		OnReportUpdated: func(r domain.IncidentReport) {
			score := "-"
			if r.AIAuthenticityScore != nil {
				score = fmt.Sprintf("%d", *r.AIAuthenticityScore)
			}
			fmt.Printf("<< report %s updated status=%s score=%s\n", r.ID, r.Status, score)
		},
	}
}
