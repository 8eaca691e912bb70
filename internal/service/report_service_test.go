package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"

	"crisisrelay/internal/domain"
	"crisisrelay/internal/service"
	mock_service "crisisrelay/internal/service/mocks"
	"crisisrelay/pkg/e"
)

func TestReportService_Submit_RelaysToOfficialsOnly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	officials := connections(2, domain.RoleOfficial)
	registry.EXPECT().SnapshotRole(domain.RoleOfficial).Return(officials).Times(1)

	var sent domain.Envelope
	sender.EXPECT().
		FanOut(officials, gomock.Any()).
		DoAndReturn(func(_ []domain.Connection, env domain.Envelope) int {
			sent = env
			return len(officials)
		}).
		Times(1)

	svc := service.NewReportService(registry, sender, newTestLogger())

	report := domain.IncidentReport{
		ID:     "R2",
		UserID: "u1",
		Type:   "flood",
		Status: domain.ReportSentUnscored,
	}

	resp, err := svc.Submit(context.Background(), "conn-1", report)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Report.ID != "R2" {
		t.Fatalf("expected echoed report R2 got %q", resp.Report.ID)
	}
	if sent.Event != domain.EventNewIncident {
		t.Fatalf("expected event %q got %q", domain.EventNewIncident, sent.Event)
	}
}

func TestReportService_Submit_FillsUserIDFromRegistry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	registry.EXPECT().
		Get("conn-1").
		Return(domain.Connection{ConnectionID: "conn-1", UserID: "u9", Role: domain.RoleCitizen}, true).
		Times(1)
	registry.EXPECT().SnapshotRole(domain.RoleOfficial).Return(nil).Times(1)
	sender.EXPECT().FanOut(gomock.Any(), gomock.Any()).Return(0).Times(1)

	svc := service.NewReportService(registry, sender, newTestLogger())

	resp, err := svc.Submit(context.Background(), "conn-1", domain.IncidentReport{
		ID:     "R3",
		Type:   "fire",
		Status: domain.ReportSentUnscored,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Report.UserID != "u9" {
		t.Fatalf("expected userId filled from registry, got %q", resp.Report.UserID)
	}
}

func TestReportService_Submit_StatusRelayedUntouched(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	officials := connections(1, domain.RoleOfficial)
	registry.EXPECT().SnapshotRole(domain.RoleOfficial).Return(officials).Times(1)

	var sent domain.Envelope
	sender.EXPECT().
		FanOut(officials, gomock.Any()).
		DoAndReturn(func(_ []domain.Connection, env domain.Envelope) int {
			sent = env
			return 1
		}).
		Times(1)

	svc := service.NewReportService(registry, sender, newTestLogger())

	// The sender owns the delivery state; whatever it says goes through
	// unchanged, queuedLocally included.
	resp, err := svc.Submit(context.Background(), "conn-1", domain.IncidentReport{
		ID:     "R7",
		UserID: "u1",
		Type:   "flood",
		Status: domain.ReportQueuedLocally,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Report.Status != domain.ReportQueuedLocally {
		t.Fatalf("status rewritten to %q, want it untouched", resp.Report.Status)
	}

	var relayed domain.IncidentReport
	if err := json.Unmarshal(sent.Data, &relayed); err != nil {
		t.Fatalf("invalid envelope payload: %v", err)
	}
	if relayed.Status != domain.ReportQueuedLocally {
		t.Fatalf("relayed status rewritten to %q, want it untouched", relayed.Status)
	}
}

func TestReportService_Submit_ScoreUpdateRelayedVerbatim(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	officials := connections(1, domain.RoleOfficial)
	registry.EXPECT().SnapshotRole(domain.RoleOfficial).Return(officials).Times(1)

	var sent domain.Envelope
	sender.EXPECT().
		FanOut(officials, gomock.Any()).
		DoAndReturn(func(_ []domain.Connection, env domain.Envelope) int {
			sent = env
			return 1
		}).
		Times(1)

	svc := service.NewReportService(registry, sender, newTestLogger())

	score := 85
	verdict := domain.VerdictVerified
	update := domain.IncidentReport{
		ID:                  "R2",
		UserID:              "u1",
		Type:                "flood",
		Status:              domain.ReportScored,
		HasMedia:            true,
		AIAuthenticityScore: &score,
		Verification:        &verdict,
	}

	resp, err := svc.Submit(context.Background(), "conn-1", update)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Report.Status != domain.ReportScored {
		t.Fatalf("server must not rewrite a scored status, got %q", resp.Report.Status)
	}

	var relayed domain.IncidentReport
	if err := json.Unmarshal(sent.Data, &relayed); err != nil {
		t.Fatalf("invalid envelope payload: %v", err)
	}
	if relayed.ID != "R2" || relayed.AIAuthenticityScore == nil || *relayed.AIAuthenticityScore != 85 {
		t.Fatalf("score update not relayed verbatim: %+v", relayed)
	}
}

func TestReportService_Submit_MissingType(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	svc := service.NewReportService(registry, sender, newTestLogger())

	_, err := svc.Submit(context.Background(), "conn-1", domain.IncidentReport{ID: "R4"})
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput got %v", err)
	}
}

func TestReportService_Submit_MissingID(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mock_service.NewMockConnectionRegistry(ctrl)
	sender := mock_service.NewMockSender(ctrl)

	svc := service.NewReportService(registry, sender, newTestLogger())

	_, err := svc.Submit(context.Background(), "conn-1", domain.IncidentReport{Type: "flood"})
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput got %v", err)
	}
}
