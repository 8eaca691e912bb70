package system

import (
	"encoding/json"
	"net/http"

	"log/slog"
)

type ConnectionCounter interface {
	CountConnected() int
}

type Handler struct {
	logger   *slog.Logger
	presence ConnectionCounter
}

func NewHandler(logger *slog.Logger, presence ConnectionCounter) *Handler {
	return &Handler{logger: logger, presence: presence}
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	resp := healthResponse{Status: "ok", Connections: h.presence.CountConnected()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("health encode failed", slog.Any("error", err))
	}
}
