package services

import (
	"fmt"
	"math"

	"roadassist/internal/models"
	"roadassist/internal/utils"
)

// Estimate is the live remaining distance/duration derived from the cached
// route snapshot, with no additional external calls.
type Estimate struct {
	RemainingMeters  float64 `json:"remaining_meters"`
	RemainingSeconds int     `json:"remaining_seconds"`
	OffRouteMeters   float64 `json:"off_route_meters"`
	Projected        bool    `json:"projected"`
	Display          string  `json:"display"`
}

// Estimator projects the live position onto the cached route polyline and
// scales the snapshot's totals by the fraction of route still ahead.
type Estimator struct {
	// Positions farther than this from the route are considered outside its
	// envelope; the estimator then falls back to the snapshot totals.
	EnvelopeMeters float64
}

func NewEstimator(envelopeMeters float64) *Estimator {
	return &Estimator{EnvelopeMeters: envelopeMeters}
}

// Estimate derives the remaining distance and duration for the position.
// Returns nil when the snapshot is empty. When the projection is not possible
// (malformed polyline, position outside the route envelope) it falls back to
// the snapshot's full totals with Projected=false.
func (e *Estimator) Estimate(snapshot *models.RouteSnapshot, position utils.Point) *Estimate {
	if snapshot.IsEmpty() {
		return nil
	}

	fallback := &Estimate{
		RemainingMeters:  snapshot.Distance,
		RemainingSeconds: snapshot.Duration,
		Projected:        false,
	}
	fallback.Display = formatEstimate(fallback)

	path := utils.DecodePolyline(snapshot.Polyline)
	projection, ok := utils.ProjectOntoPath(path, position)
	if !ok {
		return fallback
	}
	if e.EnvelopeMeters > 0 && projection.DistanceMeters > e.EnvelopeMeters {
		return fallback
	}

	pathLength := utils.PathLengthMeters(path)
	if pathLength <= 0 {
		return fallback
	}

	remainingFraction := 1 - projection.TraveledMeters/pathLength
	if remainingFraction < 0 {
		remainingFraction = 0
	}

	estimate := &Estimate{
		RemainingMeters:  snapshot.Distance * remainingFraction,
		RemainingSeconds: int(math.Round(float64(snapshot.Duration) * remainingFraction)),
		OffRouteMeters:   projection.DistanceMeters,
		Projected:        true,
	}
	estimate.Display = formatEstimate(estimate)

	return estimate
}

func formatEstimate(e *Estimate) string {
	return fmt.Sprintf("%s · %s", utils.FormatDistance(e.RemainingMeters), utils.FormatDuration(e.RemainingSeconds))
}
