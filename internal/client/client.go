package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"crisisrelay/internal/domain"
	"crisisrelay/pkg/e"
)

// Handlers are the client's incoming-event callbacks. All of them are
// optional and are invoked from the read loop, one at a time.
type Handlers struct {
	OnRegistered       func(domain.RegisteredResponse)
	OnDisasterAlert    func(domain.Alert)
	OnAlertBroadcasted func(domain.AlertBroadcastedResponse)
	OnSOSAlert         func(domain.SOSAlert)
	OnLocationUpdate   func(domain.LocationSample)
	OnAllLocations     func([]domain.LocationSample)
	OnNewReport        func(domain.IncidentReport)
	OnReportUpdated    func(domain.IncidentReport)
}

type Config struct {
	URL          string
	Identity     domain.RegisterRequest
	Logger       *slog.Logger
	Handlers     Handlers
	Classifier   Classifier
	Scorer       Scorer
	Locator      Locator
	ThrottleEach time.Duration
	ThrottleDist float64
	WriteTimeout time.Duration
	ScoreTimeout time.Duration
}

// Client is one citizen or official process: it holds the local report list
// (the source of truth for "my reports", independent of connectivity), the
// location throttle, and the socket when one is up.
type Client struct {
	logger   *slog.Logger
	url      string
	identity domain.RegisterRequest
	handlers Handlers

	classifier Classifier
	scorer     Scorer
	locator    Locator
	throttle   *LocationThrottle
	reports    *ReportList

	writeTimeout time.Duration
	scoreTimeout time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	connCancel context.CancelFunc
	registered chan registrationResult
}

// registrationResult is what the read loop hands to a pending Connect: either
// the registered ack or the server's rejection.
type registrationResult struct {
	resp domain.RegisteredResponse
	err  error
}

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	scoreTimeout := cfg.ScoreTimeout
	if scoreTimeout <= 0 {
		scoreTimeout = 30 * time.Second
	}
	return &Client{
		logger:       logger,
		url:          cfg.URL,
		identity:     cfg.Identity,
		handlers:     cfg.Handlers,
		classifier:   cfg.Classifier,
		scorer:       cfg.Scorer,
		locator:      cfg.Locator,
		throttle:     NewLocationThrottle(cfg.ThrottleEach, cfg.ThrottleDist),
		reports:      NewReportList(),
		writeTimeout: writeTimeout,
		scoreTimeout: scoreTimeout,
	}
}

// Connect dials the relay, registers, and starts the read loop. It returns
// once the server acknowledges registration. Safe to call again after a
// disconnect; the local report list survives reconnects.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return e.Wrap("dial", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "duplicate connect")
		return e.Wrap("connect", e.ErrAlreadyConnected)
	}
	c.conn = conn
	c.connCancel = cancel
	c.registered = make(chan registrationResult, 1)
	registered := c.registered
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)

	if err := c.send(ctx, domain.EventRegister, c.identity); err != nil {
		c.Close()
		return err
	}

	select {
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case res := <-registered:
		c.mu.Lock()
		c.registered = nil
		c.mu.Unlock()
		if res.err != nil {
			c.Close()
			return e.Wrap("register", res.err)
		}
		c.logger.Info("registered with relay",
			slog.String("socket_id", res.resp.SocketID),
			slog.String("role", string(c.identity.Role)),
		)
		return nil
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.connCancel
	c.conn = nil
	c.connCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "closed")
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Reports is the user-visible list, newest first.
func (c *Client) Reports() []domain.IncidentReport {
	return c.reports.Snapshot()
}

// Get looks up one report by id.
func (c *Client) Get(id string) (domain.IncidentReport, bool) {
	return c.reports.Get(id)
}

type ReportDraft struct {
	Type         string
	Description  string
	LocationText string
	Image        *Image
}

// SubmitReport runs the citizen submission flow: synchronous validation and
// coordinate resolution, then a locally stored record that goes out
// immediately when a connection is up. When an image is attached, the
// authenticity check runs detached; the user-visible confirmation never
// waits on it.
func (c *Client) SubmitReport(ctx context.Context, draft ReportDraft) (domain.IncidentReport, error) {
	if strings.TrimSpace(draft.Type) == "" {
		return domain.IncidentReport{}, e.Wrap("submit report: incident type", e.ErrMissingRequired)
	}

	incidentType := draft.Type
	var imageCoords *domain.Coordinates
	if draft.Image != nil {
		imageCoords = draft.Image.Coordinates
		if c.classifier != nil {
			cls, err := c.classifier.Classify(ctx, *draft.Image)
			if err != nil {
				c.logger.Warn("classifier unavailable, keeping current type", slog.Any("error", err))
			} else {
				if cls.IncidentType != "" {
					incidentType = cls.IncidentType
				}
				if imageCoords == nil {
					imageCoords = cls.Coordinates
				}
			}
		}
	}

	coords, err := c.resolveCoordinates(ctx, imageCoords)
	if err != nil {
		return domain.IncidentReport{}, err
	}

	report := domain.IncidentReport{
		ID:          uuid.NewString(),
		UserID:      c.identity.UserID,
		Type:        incidentType,
		Description: draft.Description,
		Location:    draft.LocationText,
		Coordinates: &coords,
		Timestamp:   time.Now().UTC().UnixMilli(),
		Status:      domain.ReportQueuedLocally,
		HasMedia:    draft.Image != nil,
	}

	if c.IsConnected() {
		report.Status = domain.ReportSentUnscored
		if err := c.send(ctx, domain.EventReportIncident, report); err != nil {
			// Transport failure only changes the delivery state.
			c.logger.Warn("report transmission failed, queued locally",
				slog.String("report_id", report.ID),
				slog.Any("error", err),
			)
			report.Status = domain.ReportQueuedLocally
		}
	}

	c.reports.Merge(report)

	if draft.Image != nil && c.scorer != nil {
		go c.scoreInBackground(report, *draft.Image)
	}

	return report, nil
}

// resolveCoordinates prefers image-embedded position data, then the device's
// current position. No silent fallback to a last-known position: failing
// both is fatal for this submission.
func (c *Client) resolveCoordinates(ctx context.Context, imageCoords *domain.Coordinates) (domain.Coordinates, error) {
	if imageCoords != nil {
		return *imageCoords, nil
	}
	if c.locator == nil {
		return domain.Coordinates{}, e.Wrap("submit report", e.ErrNoLocation)
	}
	coords, err := c.locator.Current(ctx)
	if err != nil {
		return domain.Coordinates{}, e.Wrap("submit report", e.ErrNoLocation)
	}
	return coords, nil
}

// scoreInBackground is the detached authenticity-verification step. A
// failure is swallowed: the report stays sentUnscored indefinitely and the
// user never sees an error for it.
func (c *Client) scoreInBackground(report domain.IncidentReport, img Image) {
	ctx, cancel := context.WithTimeout(context.Background(), c.scoreTimeout)
	defer cancel()

	res, err := c.scorer.Score(ctx, img, report)
	if err != nil {
		c.logger.Warn("authenticity scoring failed, report stays unscored",
			slog.String("report_id", report.ID),
			slog.Any("error", err),
		)
		return
	}

	current, ok := c.reports.Get(report.ID)
	if !ok {
		current = report
	}
	score := res.Score
	verdict := res.Verdict
	current.Status = domain.ReportScored
	current.AIAuthenticityScore = &score
	current.Verification = &verdict

	c.reports.Merge(current)
	if c.handlers.OnReportUpdated != nil {
		c.handlers.OnReportUpdated(current)
	}

	if c.IsConnected() {
		if err := c.send(ctx, domain.EventReportIncident, current); err != nil {
			c.logger.Warn("scored report re-transmission failed",
				slog.String("report_id", current.ID),
				slog.Any("error", err),
			)
		}
	}
}

// SendLocation emits the device position if the throttle allows it. Returns
// whether a sample actually went out; being offline or throttled is not an
// error. The throttle window is consumed only on a successful write, so an
// offline or failed attempt never delays the next one.
func (c *Client) SendLocation(ctx context.Context, lat, lng, accuracy float64) (bool, error) {
	if !c.IsConnected() {
		return false, nil
	}
	if !c.throttle.Allow(lat, lng) {
		return false, nil
	}
	sample := domain.LocationSample{
		UserID:    c.identity.UserID,
		UserName:  c.identity.DisplayName,
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  accuracy,
		Timestamp: time.Now().UTC().UnixMilli(),
	}
	if err := c.send(ctx, domain.EventCitizenLocation, sample); err != nil {
		return false, err
	}
	c.throttle.Mark(lat, lng)
	return true, nil
}

// RequestLocations asks for the current snapshot; the reply arrives on
// OnAllLocations.
func (c *Client) RequestLocations(ctx context.Context) error {
	return c.send(ctx, domain.EventRequestLocations, nil)
}

// BroadcastAlert is the official-side submission; the acknowledgement with
// the recipient count arrives on OnAlertBroadcasted.
func (c *Client) BroadcastAlert(ctx context.Context, req domain.BroadcastAlertRequest) error {
	return c.send(ctx, domain.EventBroadcastAlert, req)
}

func (c *Client) SendSOS(ctx context.Context, message string, coords *domain.Coordinates) error {
	sos := domain.SOSAlert{
		UserID:      c.identity.UserID,
		UserName:    c.identity.DisplayName,
		Message:     message,
		Coordinates: coords,
		Timestamp:   time.Now().UTC().UnixMilli(),
	}
	return c.send(ctx, domain.EventSendSOS, sos)
}

// Flush re-sends reports still queuedLocally. This is an explicit user
// action; reconnecting does not replay the queue automatically.
func (c *Client) Flush(ctx context.Context) (int, error) {
	if !c.IsConnected() {
		return 0, e.Wrap("flush", e.ErrNotConnected)
	}
	sent := 0
	for _, r := range c.reports.QueuedLocally() {
		r.Status = domain.ReportSentUnscored
		if err := c.send(ctx, domain.EventReportIncident, r); err != nil {
			return sent, err
		}
		c.reports.Merge(r)
		sent++
	}
	return sent, nil
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return e.Wrap(event, e.ErrNotConnected)
	}

	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return e.Wrap(event, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, env); err != nil {
		return e.Wrap(event, e.ErrNotConnected)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.connCancel = nil
		}
		c.mu.Unlock()
	}()

	for {
		var env domain.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			c.logger.Debug("connection closed", slog.Any("error", err))
			return
		}
		c.handleEvent(env)
	}
}

func (c *Client) handleEvent(env domain.Envelope) {
	switch env.Event {
	case domain.EventRegistered:
		var resp domain.RegisteredResponse
		if !c.decode(env, &resp) {
			return
		}
		c.mu.Lock()
		registered := c.registered
		c.mu.Unlock()
		if registered != nil {
			select {
			case registered <- registrationResult{resp: resp}:
			default:
			}
		}
		if c.handlers.OnRegistered != nil {
			c.handlers.OnRegistered(resp)
		}

	case domain.EventDisasterAlert:
		var alert domain.Alert
		if c.decode(env, &alert) && c.handlers.OnDisasterAlert != nil {
			c.handlers.OnDisasterAlert(alert)
		}

	case domain.EventAlertBroadcasted:
		var resp domain.AlertBroadcastedResponse
		if c.decode(env, &resp) && c.handlers.OnAlertBroadcasted != nil {
			c.handlers.OnAlertBroadcasted(resp)
		}

	case domain.EventSOSAlert:
		var sos domain.SOSAlert
		if c.decode(env, &sos) && c.handlers.OnSOSAlert != nil {
			c.handlers.OnSOSAlert(sos)
		}

	case domain.EventLocationUpdate:
		var sample domain.LocationSample
		if c.decode(env, &sample) && c.handlers.OnLocationUpdate != nil {
			c.handlers.OnLocationUpdate(sample)
		}

	case domain.EventAllLocations:
		var samples []domain.LocationSample
		if c.decode(env, &samples) && c.handlers.OnAllLocations != nil {
			c.handlers.OnAllLocations(samples)
		}

	case domain.EventNewIncident:
		var report domain.IncidentReport
		if !c.decode(env, &report) {
			return
		}
		// Merge-by-id: the notification fires only when the id is new.
		if c.reports.Merge(report) {
			if c.handlers.OnNewReport != nil {
				c.handlers.OnNewReport(report)
			}
		} else if c.handlers.OnReportUpdated != nil {
			c.handlers.OnReportUpdated(report)
		}

	case domain.EventReportSubmitted:
		var resp domain.ReportSubmittedResponse
		if !c.decode(env, &resp) {
			return
		}
		if r, ok := c.reports.Get(resp.Report.ID); ok && r.IsScored() && !resp.Report.IsScored() {
			// The echo can race the detached scoring result; never let an
			// unscored echo roll a scored record back.
			return
		}
		c.reports.Merge(resp.Report)

	case domain.EventError:
		var p domain.ErrorPayload
		if !c.decode(env, &p) {
			return
		}
		// A rejection while registration is pending fails Connect right away
		// instead of letting it sit out its context.
		c.mu.Lock()
		registered := c.registered
		c.mu.Unlock()
		if registered != nil {
			select {
			case registered <- registrationResult{err: errors.New(p.Message)}:
				return
			default:
			}
		}
		c.logger.Warn("server rejected message", slog.String("message", p.Message))

	default:
		c.logger.Debug("unhandled event", slog.String("event", env.Event))
	}
}

func (c *Client) decode(env domain.Envelope, target any) bool {
	if err := json.Unmarshal(env.Data, target); err != nil {
		c.logger.Warn("malformed payload",
			slog.String("event", env.Event),
			slog.Any("error", err),
		)
		return false
	}
	return true
}
