package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"crisisrelay/internal/config"
	"crisisrelay/internal/domain"
	"crisisrelay/internal/service"
	"crisisrelay/pkg/e"
)

// Subscriptions is the hub as the gateway sees it: one outbound channel per
// socket, plus Send for direct replies to the same connection.
type Subscriptions interface {
	Subscribe(connectionID string) <-chan domain.Envelope
	Unsubscribe(connectionID string)
	Send(connectionID string, env domain.Envelope) bool
}

type Handler struct {
	logger *slog.Logger
	svc    *service.Service
	hub    Subscriptions
	cfg    config.WsConfig
}

func NewHandler(logger *slog.Logger, svc *service.Service, hub Subscriptions, cfg config.WsConfig) *Handler {
	return &Handler{
		logger: logger,
		svc:    svc,
		hub:    hub,
		cfg:    cfg,
	}
}

// Serve upgrades the request and runs the connection until the peer goes
// away. The read pump dispatches inbound events; this goroutine owns all
// writes, draining the hub subscription with a per-write timeout.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.cfg.AllowedOrigins) > 0 {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.Any("error", err))
		return
	}

	connectionID := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Subscribe(connectionID)
	defer func() {
		h.hub.Unsubscribe(connectionID)
		h.svc.PresenceService.Disconnect(context.Background(), connectionID)
	}()

	h.logger.Debug("socket opened", slog.String("connection_id", connectionID))

	readErr := make(chan error, 1)
	go h.readPump(ctx, conn, connectionID, readErr)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case err := <-readErr:
			h.logger.Debug("socket closed by peer",
				slog.String("connection_id", connectionID),
				slog.Any("error", err),
			)
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case env, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, h.writeTimeout())
			err := wsjson.Write(writeCtx, conn, env)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func (h *Handler) writeTimeout() time.Duration {
	if h.cfg.WriteTimeout > 0 {
		return h.cfg.WriteTimeout
	}
	return 5 * time.Second
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, connectionID string, readErr chan<- error) {
	registered := false
	for {
		var env domain.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			readErr <- err
			return
		}
		registered = h.dispatch(ctx, connectionID, env, registered)
	}
}

// dispatch handles one inbound envelope. A malformed or out-of-order message
// is logged and dropped; the connection stays alive.
func (h *Handler) dispatch(ctx context.Context, connectionID string, env domain.Envelope, registered bool) bool {
	if env.Event != domain.EventRegister && !registered {
		h.logger.Warn("event before register, dropping",
			slog.String("connection_id", connectionID),
			slog.String("event", env.Event),
		)
		h.sendError(connectionID, e.ErrNotRegistered.Error())
		return registered
	}

	switch env.Event {
	case domain.EventRegister:
		var req domain.RegisterRequest
		if !h.decode(connectionID, env, &req) {
			return registered
		}
		resp, err := h.svc.PresenceService.Register(ctx, connectionID, req)
		if err != nil {
			h.sendError(connectionID, err.Error())
			return registered
		}
		h.reply(connectionID, domain.EventRegistered, resp)
		return true

	case domain.EventBroadcastAlert:
		var req domain.BroadcastAlertRequest
		if !h.decode(connectionID, env, &req) {
			return registered
		}
		broadcastedBy := connectionID
		if conn, ok := h.svc.PresenceService.Identity(connectionID); ok {
			broadcastedBy = conn.UserID
		}
		resp, err := h.svc.AlertService.Broadcast(ctx, broadcastedBy, req)
		if err != nil {
			h.sendError(connectionID, err.Error())
			return registered
		}
		h.reply(connectionID, domain.EventAlertBroadcasted, resp)

	case domain.EventCitizenLocation:
		var sample domain.LocationSample
		if !h.decode(connectionID, env, &sample) {
			return registered
		}
		if err := h.svc.LocationService.Ingest(ctx, sample); err != nil {
			h.logger.Warn("location ingest failed",
				slog.String("connection_id", connectionID),
				slog.Any("error", err),
			)
		}

	case domain.EventRequestLocations:
		h.reply(connectionID, domain.EventAllLocations, h.svc.LocationService.Current(ctx))

	case domain.EventReportIncident:
		var report domain.IncidentReport
		if !h.decode(connectionID, env, &report) {
			return registered
		}
		resp, err := h.svc.ReportService.Submit(ctx, connectionID, report)
		if err != nil {
			h.sendError(connectionID, err.Error())
			return registered
		}
		h.reply(connectionID, domain.EventReportSubmitted, resp)

	case domain.EventSendSOS:
		var sos domain.SOSAlert
		if !h.decode(connectionID, env, &sos) {
			return registered
		}
		if _, err := h.svc.AlertService.SendSOS(ctx, sos); err != nil {
			h.sendError(connectionID, err.Error())
		}

	default:
		h.logger.Warn("unknown event, dropping",
			slog.String("connection_id", connectionID),
			slog.String("event", env.Event),
		)
	}
	return registered
}

func (h *Handler) decode(connectionID string, env domain.Envelope, target any) bool {
	if err := json.Unmarshal(env.Data, target); err != nil {
		h.logger.Warn("malformed payload, dropping",
			slog.String("connection_id", connectionID),
			slog.String("event", env.Event),
			slog.Any("error", err),
		)
		h.sendError(connectionID, e.ErrMalformedEvent.Error())
		return false
	}
	return true
}

func (h *Handler) reply(connectionID, event string, payload any) {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encode reply failed",
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}
	h.hub.Send(connectionID, env)
}

func (h *Handler) sendError(connectionID, message string) {
	env, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	h.hub.Send(connectionID, env)
}
