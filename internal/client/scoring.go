package client

import (
	"context"

	"crisisrelay/internal/domain"
)

// Image is an attachment as the client sees it: raw bytes plus whatever
// position data was embedded in it.
type Image struct {
	Data        []byte
	Coordinates *domain.Coordinates
}

type Classification struct {
	IncidentType string
	Coordinates  *domain.Coordinates
}

// Classifier is the on-device model's type-suggestion side. It may be slow
// or unavailable; callers treat every failure as non-fatal.
type Classifier interface {
	Classify(ctx context.Context, img Image) (Classification, error)
}

type ScoreResult struct {
	Score   int
	Class   string
	Verdict domain.Verdict
}

// Scorer is the authenticity-verification side of the model. The contract is
// submit (image, coordinates, timestamp), eventually receive (score, class,
// verdict); it is never assumed to finish before the submission returns.
type Scorer interface {
	Score(ctx context.Context, img Image, report domain.IncidentReport) (ScoreResult, error)
}

// Locator supplies the device's current position.
type Locator interface {
	Current(ctx context.Context) (domain.Coordinates, error)
}
