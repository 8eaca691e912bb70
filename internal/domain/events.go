package domain

import "encoding/json"

// Wire event names, client→server and server→client.
const (
	EventRegister         = "register"
	EventRegistered       = "registered"
	EventBroadcastAlert   = "broadcast-alert"
	EventAlertBroadcasted = "alert-broadcasted"
	EventDisasterAlert    = "disaster-alert"
	EventCitizenLocation  = "citizen:location"
	EventLocationUpdate   = "citizen:location:update"
	EventRequestLocations = "official:request:locations"
	EventAllLocations     = "official:all:locations"
	EventReportIncident   = "report-incident"
	EventReportSubmitted  = "report-submitted"
	EventNewIncident      = "new-incident-report"
	EventSendSOS          = "send-sos"
	EventSOSAlert         = "sos-alert"
	EventError            = "error"
)

// Envelope is the one frame shape on the socket: an event name plus its
// payload, still raw so each side decodes only the events it handles.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: b}, nil
}

type ErrorPayload struct {
	Message string `json:"message"`
}
