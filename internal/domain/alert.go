package domain

import (
	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

type Coordinates struct {
	Lat float64 `json:"lat" validate:"lat"`
	Lng float64 `json:"lng" validate:"lng"`
}

// Alert is immutable once broadcast; corrections go out as a new id.
type Alert struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Severity      Severity    `json:"severity"`
	Type          string      `json:"type"`
	Language      string      `json:"language"`
	IsActive      bool        `json:"isActive"`
	Location      Coordinates `json:"location"`
	RadiusKM      float64     `json:"radius"`
	IssuedAt      int64       `json:"issuedAt"`
	BroadcastedAt int64       `json:"broadcastedAt"`
	BroadcastedBy string      `json:"broadcastedBy"`
}

type BroadcastAlertRequest struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity" validate:"required,severity"`
	Type        string      `json:"type" validate:"required"`
	Language    string      `json:"language"`
	IsActive    bool        `json:"isActive"`
	IssuedAt    int64       `json:"issuedAt"`
	Location    Coordinates `json:"location"`
	Radius      float64     `json:"radius" validate:"omitempty,radius_km"`
}

type AlertBroadcastedResponse struct {
	Alert          Alert `json:"alert"`
	RecipientCount int   `json:"recipientCount"`
}
