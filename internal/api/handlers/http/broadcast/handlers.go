package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"log/slog"

	"crisisrelay/internal/domain"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type AlertBroadcaster interface {
	Broadcast(ctx context.Context, broadcastedBy string, req domain.BroadcastAlertRequest) (domain.AlertBroadcastedResponse, error)
}

type Handler struct {
	logger           *slog.Logger
	AlertBroadcaster AlertBroadcaster
}

func NewHandler(logger *slog.Logger, alertBroadcaster AlertBroadcaster) *Handler {
	return &Handler{
		logger:           logger,
		AlertBroadcaster: alertBroadcaster,
	}
}

// AdminAlertBroadcast is the one-shot REST equivalent of the broadcast-alert
// socket event, for operator tooling without a persistent connection.
func (h *Handler) AdminAlertBroadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastAlertRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	broadcastedBy := r.Header.Get("X-Operator-Id")
	if broadcastedBy == "" {
		broadcastedBy = "rest-api"
	}

	resp, err := h.AlertBroadcaster.Broadcast(r.Context(), broadcastedBy, req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.log(r).Info("rest broadcast accepted",
		slog.String("alert_id", resp.Alert.ID.String()),
		slog.Int("recipients", resp.RecipientCount),
	)
	h.writeJSON(w, http.StatusOK, resp)
}
