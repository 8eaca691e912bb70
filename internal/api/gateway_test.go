package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisisrelay/internal/api"
	"crisisrelay/internal/api/handlers/http/broadcast"
	"crisisrelay/internal/api/handlers/http/system"
	"crisisrelay/internal/api/handlers/ws"
	"crisisrelay/internal/client"
	"crisisrelay/internal/config"
	"crisisrelay/internal/domain"
	"crisisrelay/internal/hub"
	"crisisrelay/internal/service"
	"crisisrelay/internal/storage/memory"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type testRelay struct {
	server *httptest.Server
	wsURL  string
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	logger := newTestLogger()

	cfg := &config.Config{
		Env: "test",
		Http: config.HttpConfig{
			Port:            ":0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Ws: config.WsConfig{
			WriteTimeout:     2 * time.Second,
			SubscriberBuffer: 16,
		},
		Location: config.LocationConfig{
			StalenessWindow: 5 * time.Minute,
			SweepPeriod:     5 * time.Minute,
		},
		APIKey: "test-key",
	}

	registry := memory.NewRegistry()
	locations := memory.NewLocationStore()
	h := hub.NewHub(cfg.Ws.SubscriberBuffer, logger)

	presenceSvc := service.NewPresenceService(registry, locations, logger)
	alertSvc := service.NewAlertService(registry, h, logger)
	locationSvc := service.NewLocationService(locations, registry, h, cfg.Location.StalenessWindow, logger)
	reportSvc := service.NewReportService(registry, h, logger)
	svc := service.NewService(presenceSvc, alertSvc, locationSvc, reportSvc)

	router := api.InitRouter(cfg,
		broadcast.NewHandler(logger, svc.AlertService),
		system.NewHandler(logger, svc.PresenceService),
		ws.NewHandler(logger, svc, h, cfg.Ws),
		logger,
	)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testRelay{
		server: ts,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws",
	}
}

type recorder struct {
	mu         sync.Mutex
	alerts     []domain.Alert
	sos        []domain.SOSAlert
	updates    []domain.LocationSample
	snapshots  [][]domain.LocationSample
	newReports []domain.IncidentReport
	acks       []domain.AlertBroadcastedResponse
}

func (r *recorder) handlers() client.Handlers {
	return client.Handlers{
		OnDisasterAlert: func(a domain.Alert) {
			r.mu.Lock()
			r.alerts = append(r.alerts, a)
			r.mu.Unlock()
		},
		OnSOSAlert: func(s domain.SOSAlert) {
			r.mu.Lock()
			r.sos = append(r.sos, s)
			r.mu.Unlock()
		},
		OnLocationUpdate: func(s domain.LocationSample) {
			r.mu.Lock()
			r.updates = append(r.updates, s)
			r.mu.Unlock()
		},
		OnAllLocations: func(s []domain.LocationSample) {
			r.mu.Lock()
			r.snapshots = append(r.snapshots, s)
			r.mu.Unlock()
		},
		OnNewReport: func(rep domain.IncidentReport) {
			r.mu.Lock()
			r.newReports = append(r.newReports, rep)
			r.mu.Unlock()
		},
		OnAlertBroadcasted: func(a domain.AlertBroadcastedResponse) {
			r.mu.Lock()
			r.acks = append(r.acks, a)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func (r *recorder) newReportCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.newReports)
}

func (r *recorder) lastAck() (domain.AlertBroadcastedResponse, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.acks) == 0 {
		return domain.AlertBroadcastedResponse{}, false
	}
	return r.acks[len(r.acks)-1], true
}

type fixedLocator struct{ coords domain.Coordinates }

func (f fixedLocator) Current(ctx context.Context) (domain.Coordinates, error) {
	return f.coords, nil
}

type fixedScorer struct{ res client.ScoreResult }

func (f fixedScorer) Score(ctx context.Context, img client.Image, report domain.IncidentReport) (client.ScoreResult, error) {
	return f.res, nil
}

func connectClient(t *testing.T, relay *testRelay, userID string, role domain.Role, cfg client.Config) *client.Client {
	t.Helper()
	cfg.URL = relay.wsURL
	cfg.Logger = newTestLogger()
	cfg.Identity = domain.RegisterRequest{
		UserID:      userID,
		Role:        role,
		DisplayName: "user " + userID,
	}

	c := client.New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)
	return c
}

func TestRelay_ReportReachesOfficialOnceAndScoreMerges(t *testing.T) {
	relay := newTestRelay(t)

	officialRec := &recorder{}
	official := connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{
		Handlers: officialRec.handlers(),
	})

	citizen := connectClient(t, relay, "citizen-1", domain.RoleCitizen, client.Config{
		Locator: fixedLocator{coords: domain.Coordinates{Lat: 27.7, Lng: 85.3}},
		Scorer: fixedScorer{res: client.ScoreResult{
			Score:   85,
			Class:   "flood",
			Verdict: domain.VerdictVerified,
		}},
	})

	submitted, err := citizen.SubmitReport(context.Background(), client.ReportDraft{
		Type:        "flood",
		Description: "river rising",
		Image:       &client.Image{Data: []byte("jpeg")},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ReportSentUnscored, submitted.Status)

	// Official receives the report once, then the score update replaces it.
	require.Eventually(t, func() bool {
		r, ok := official.Get(submitted.ID)
		return ok && r.Status == domain.ReportScored
	}, 5*time.Second, 20*time.Millisecond, "score update never reached the official")

	assert.Equal(t, 1, officialRec.newReportCount(), "new-report notification must fire exactly once per id")
	require.Len(t, official.Reports(), 1, "merge-by-id must never duplicate")

	got, ok := official.Get(submitted.ID)
	require.True(t, ok)
	assert.Equal(t, 85, *got.AIAuthenticityScore)

	// Citizen's own list also holds exactly one entry for the id.
	require.Eventually(t, func() bool {
		r, ok := citizen.Get(submitted.ID)
		return ok && r.Status == domain.ReportScored
	}, 5*time.Second, 20*time.Millisecond)
	require.Len(t, citizen.Reports(), 1)
}

func TestRelay_BroadcastReachesConnectedOnly(t *testing.T) {
	relay := newTestRelay(t)

	recs := make([]*recorder, 3)
	for i := range recs {
		recs[i] = &recorder{}
	}
	official := connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{Handlers: recs[0].handlers()})
	connectClient(t, relay, "citizen-1", domain.RoleCitizen, client.Config{Handlers: recs[1].handlers()})
	connectClient(t, relay, "citizen-2", domain.RoleCitizen, client.Config{Handlers: recs[2].handlers()})

	require.NoError(t, official.BroadcastAlert(context.Background(), domain.BroadcastAlertRequest{
		Title:    "Flood warning",
		Severity: domain.SeverityHigh,
		Type:     "flood",
		IsActive: true,
		Location: domain.Coordinates{Lat: 27.7, Lng: 85.3},
		Radius:   25,
	}))

	require.Eventually(t, func() bool {
		ack, ok := recs[0].lastAck()
		return ok && ack.RecipientCount == 3
	}, 5*time.Second, 20*time.Millisecond, "broadcast ack with registry-size recipient count")

	for i, rec := range recs {
		rec := rec
		require.Eventually(t, func() bool { return rec.alertCount() == 1 },
			5*time.Second, 20*time.Millisecond, "client %d never received the alert", i)
	}

	// A client connecting after the broadcast never sees it: no replay.
	lateRec := &recorder{}
	connectClient(t, relay, "citizen-late", domain.RoleCitizen, client.Config{Handlers: lateRec.handlers()})
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, lateRec.alertCount())
}

func TestRelay_LocationFlowAndSnapshot(t *testing.T) {
	relay := newTestRelay(t)

	officialRec := &recorder{}
	official := connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{
		Handlers: officialRec.handlers(),
	})
	citizen := connectClient(t, relay, "citizen-1", domain.RoleCitizen, client.Config{})

	sent, err := citizen.SendLocation(context.Background(), 27.7, 85.3, 12)
	require.NoError(t, err)
	require.True(t, sent)

	require.Eventually(t, func() bool {
		officialRec.mu.Lock()
		defer officialRec.mu.Unlock()
		return len(officialRec.updates) == 1
	}, 5*time.Second, 20*time.Millisecond, "official never saw the location update")

	require.NoError(t, official.RequestLocations(context.Background()))
	require.Eventually(t, func() bool {
		officialRec.mu.Lock()
		defer officialRec.mu.Unlock()
		return len(officialRec.snapshots) == 1
	}, 5*time.Second, 20*time.Millisecond, "snapshot reply never arrived")

	officialRec.mu.Lock()
	snap := officialRec.snapshots[0]
	officialRec.mu.Unlock()
	require.Len(t, snap, 1)
	assert.Equal(t, "citizen-1", snap[0].UserID)
}

func TestRelay_OfflineLocationAttemptDoesNotConsumeThrottle(t *testing.T) {
	relay := newTestRelay(t)

	officialRec := &recorder{}
	connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{
		Handlers: officialRec.handlers(),
	})

	c := client.New(client.Config{
		URL:    relay.wsURL,
		Logger: newTestLogger(),
		Identity: domain.RegisterRequest{
			UserID:      "citizen-1",
			Role:        domain.RoleCitizen,
			DisplayName: "citizen one",
		},
		ThrottleEach: 60 * time.Second,
		ThrottleDist: 50,
	})

	// Offline attempt: dropped, no error.
	sent, err := c.SendLocation(context.Background(), 27.7, 85.3, 10)
	require.NoError(t, err)
	require.False(t, sent)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	// Same coordinates right after coming online: the dropped attempt must
	// not have started the interval window.
	sent, err = c.SendLocation(context.Background(), 27.7, 85.3, 10)
	require.NoError(t, err)
	require.True(t, sent, "first online sample suppressed by a dropped offline attempt")

	require.Eventually(t, func() bool {
		officialRec.mu.Lock()
		defer officialRec.mu.Unlock()
		return len(officialRec.updates) == 1
	}, 5*time.Second, 20*time.Millisecond, "official never received a position for the connected citizen")
}

func TestRelay_GatewayRejectsBadFramesAndStaysOpen(t *testing.T) {
	relay := newTestRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, relay.wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Any event before register is refused.
	require.NoError(t, wsjson.Write(ctx, conn, domain.Envelope{
		Event: domain.EventSendSOS,
		Data:  json.RawMessage(`{}`),
	}))
	var env domain.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	require.Equal(t, domain.EventError, env.Event)
	var p domain.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "connection not registered", p.Message)

	// A register frame whose payload does not decode is dropped with an
	// error reply; the connection survives.
	require.NoError(t, wsjson.Write(ctx, conn, domain.Envelope{
		Event: domain.EventRegister,
		Data:  json.RawMessage(`"nope"`),
	}))
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	require.Equal(t, domain.EventError, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "malformed event", p.Message)

	// Still alive: a proper register goes through.
	reg, err := domain.NewEnvelope(domain.EventRegister, domain.RegisterRequest{
		UserID: "citizen-1",
		Role:   domain.RoleCitizen,
	})
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, reg))
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	assert.Equal(t, domain.EventRegistered, env.Event)
}

func TestRelay_RegisterRejectionFailsConnectFast(t *testing.T) {
	relay := newTestRelay(t)

	c := client.New(client.Config{
		URL:    relay.wsURL,
		Logger: newTestLogger(),
		Identity: domain.RegisterRequest{
			UserID: "citizen-1",
			Role:   "spectator",
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := c.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
	assert.Less(t, time.Since(start), 5*time.Second, "rejection must fail Connect before the context deadline")
	assert.False(t, c.IsConnected())
}

func TestRelay_SOSFansOutToAll(t *testing.T) {
	relay := newTestRelay(t)

	officialRec := &recorder{}
	connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{
		Handlers: officialRec.handlers(),
	})
	citizen := connectClient(t, relay, "citizen-1", domain.RoleCitizen, client.Config{})

	require.NoError(t, citizen.SendSOS(context.Background(), "trapped near bridge", &domain.Coordinates{Lat: 27.7, Lng: 85.3}))

	require.Eventually(t, func() bool {
		officialRec.mu.Lock()
		defer officialRec.mu.Unlock()
		return len(officialRec.sos) == 1 && officialRec.sos[0].UserID == "citizen-1"
	}, 5*time.Second, 20*time.Millisecond, "sos never reached the official")
}

func TestRelay_HealthReportsConnectionCount(t *testing.T) {
	relay := newTestRelay(t)

	connectClient(t, relay, "citizen-1", domain.RoleCitizen, client.Config{})
	connectClient(t, relay, "official-1", domain.RoleOfficial, client.Config{})

	resp, err := http.Get(relay.server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 2, got.Connections)
}

func TestRelay_RESTBroadcastRequiresAPIKey(t *testing.T) {
	relay := newTestRelay(t)

	body := `{"title":"t","severity":"low","type":"quake"}`

	req, err := http.NewRequest(http.MethodPost, relay.server.URL+"/api/v1/admin/alerts/broadcast", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, relay.server.URL+"/api/v1/admin/alerts/broadcast", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "test-key")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.AlertBroadcastedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "rest-api", got.Alert.BroadcastedBy)
}
