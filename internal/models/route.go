package models

import (
	"time"
)

// RouteSnapshot is the cached result of one external routing call. It is
// replaced wholesale on phase change, manual recompute or deviation-triggered
// recompute, never patched field by field.
type RouteSnapshot struct {
	Polyline   string          `json:"polyline" bson:"polyline"`
	Distance   float64         `json:"distance" bson:"distance"` // meters
	Duration   int             `json:"duration" bson:"duration"` // seconds
	Phase      NavigationPhase `json:"phase" bson:"phase"`
	ComputedAt time.Time       `json:"computed_at" bson:"computed_at"`
}

func (r *RouteSnapshot) IsEmpty() bool {
	return r == nil || r.Polyline == ""
}

// DeviationState tracks how long the provider has been continuously off-route
// and when the last automatic recomputation fired.
type DeviationState struct {
	OffRouteSince   *time.Time `json:"off_route_since" bson:"off_route_since"`
	LastAutoRecalc  *time.Time `json:"last_auto_recalc" bson:"last_auto_recalc"`
	Cooldown        time.Duration `json:"cooldown" bson:"cooldown"`
}
