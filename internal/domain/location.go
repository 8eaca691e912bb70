package domain

// LocationSample is the last-known position of one citizen. The store keeps
// at most one sample per UserID; Timestamp is the client's epoch-ms clock and
// is informational only, freshness is tracked by arrival time at the server.
type LocationSample struct {
	UserID    string  `json:"userId" validate:"required"`
	UserName  string  `json:"userName"`
	Latitude  float64 `json:"latitude" validate:"lat"`
	Longitude float64 `json:"longitude" validate:"lng"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}
