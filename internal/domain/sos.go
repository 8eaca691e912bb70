package domain

// SOSAlert is a citizen-originated panic signal, fanned out to everyone with
// the same fire-and-forget semantics as a disaster alert.
type SOSAlert struct {
	UserID      string       `json:"userId" validate:"required"`
	UserName    string       `json:"userName"`
	Message     string       `json:"message"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}
