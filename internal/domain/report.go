package domain

type DeliveryState string

const (
	ReportQueuedLocally DeliveryState = "queuedLocally"
	ReportSentUnscored  DeliveryState = "sentUnscored"
	ReportScored        DeliveryState = "scored"
)

type Verdict string

const (
	VerdictVerified   Verdict = "verified"
	VerdictPending    Verdict = "pending"
	VerdictFake       Verdict = "fake"
	VerdictUnverified Verdict = "unverified"
)

// IncidentReport identity is the client-generated ID. Any message carrying an
// existing id updates the existing record; it never appends a second one.
// The server relays these verbatim and holds no copy.
type IncidentReport struct {
	ID                  string        `json:"id" validate:"required"`
	UserID              string        `json:"userId"`
	Type                string        `json:"type" validate:"required"`
	Description         string        `json:"description"`
	Location            string        `json:"location"`
	Coordinates         *Coordinates  `json:"coordinates,omitempty"`
	Timestamp           int64         `json:"timestamp"`
	Status              DeliveryState `json:"status"`
	HasMedia            bool          `json:"hasMedia"`
	Verification        *Verdict      `json:"verification,omitempty"`
	AIAuthenticityScore *int          `json:"aiAuthenticityScore,omitempty"`
}

// Scored reports carry both the score and a verdict.
func (r IncidentReport) IsScored() bool {
	return r.Status == ReportScored && r.AIAuthenticityScore != nil
}

type ReportSubmittedResponse struct {
	Report IncidentReport `json:"report"`
}
