package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripStatus string
type ServiceType string
type Role string

const (
	TripStatusRequested  TripStatus = "requested"
	TripStatusAccepted   TripStatus = "accepted"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"

	// Two-leg services carry the vehicle to a destination; the rest are
	// resolved at the client's location.
	ServiceTypeTow        ServiceType = "tow"
	ServiceTypeBattery    ServiceType = "battery"
	ServiceTypeTireChange ServiceType = "tire_change"
	ServiceTypeFuel       ServiceType = "fuel"
	ServiceTypeLockout    ServiceType = "lockout"
	ServiceTypeWinch      ServiceType = "winch"

	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

type Trip struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TripNumber    string             `json:"trip_number" bson:"trip_number" validate:"required"`
	ClientID      primitive.ObjectID `json:"client_id" bson:"client_id" validate:"required"`
	ProviderID    *primitive.ObjectID `json:"provider_id" bson:"provider_id"`
	ServiceType   ServiceType        `json:"service_type" bson:"service_type" validate:"required"`
	Status        TripStatus         `json:"status" bson:"status" default:"requested"`
	Origin        GeoPoint           `json:"origin" bson:"origin" validate:"required"`
	Destination   *GeoPoint          `json:"destination" bson:"destination"`
	AgreedValue   float64            `json:"agreed_value" bson:"agreed_value"`
	Currency      string             `json:"currency" bson:"currency" default:"USD"`

	Phase NavigationPhase `json:"navigation_phase" bson:"navigation_phase" default:"to_client"`

	// Route snapshot fields, replaced wholesale on every recomputation.
	RoutePolyline string     `json:"route_polyline" bson:"route_polyline"`
	RouteDistance float64    `json:"route_distance" bson:"route_distance"` // meters
	RouteDuration int        `json:"route_duration" bson:"route_duration"` // seconds
	RoutePhase    NavigationPhase `json:"route_phase" bson:"route_phase"`
	RouteComputedAt *time.Time `json:"route_computed_at" bson:"route_computed_at"`

	// Last known provider position, written only by the provider role and
	// consumed read-only by the client's tracker.
	ProviderLocation *LocationSample `json:"provider_location" bson:"provider_location"`

	// Milestone flags. Written by whichever role performs the action.
	ArrivedAtPickup        bool `json:"arrived_at_pickup" bson:"arrived_at_pickup"`
	ArrivedAtDestination   bool `json:"arrived_at_destination" bson:"arrived_at_destination"`
	IsDirectPayment        bool `json:"is_direct_payment" bson:"is_direct_payment"`
	DirectPaymentConfirmed bool `json:"direct_payment_confirmed" bson:"direct_payment_confirmed"`

	// Commission split recorded when a direct payment is finalized.
	CommissionPercent  float64 `json:"commission_percent" bson:"commission_percent"`
	CommissionAmount   float64 `json:"commission_amount" bson:"commission_amount"`
	ProviderNetAmount  float64 `json:"provider_net_amount" bson:"provider_net_amount"`

	RequestedAt time.Time  `json:"requested_at" bson:"requested_at"`
	StartedAt   *time.Time `json:"started_at" bson:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" bson:"finished_at"`
	CancelledAt *time.Time `json:"cancelled_at" bson:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// HasDestinationLeg reports whether the trip navigates a second leg after the
// provider reaches the client.
func (t *Trip) HasDestinationLeg() bool {
	return t.Destination != nil
}

// RouteSnapshotFromTrip extracts the persisted route fields as a snapshot, or
// nil when no route has been computed yet.
func (t *Trip) RouteSnapshot() *RouteSnapshot {
	if t.RoutePolyline == "" {
		return nil
	}
	snap := &RouteSnapshot{
		Polyline: t.RoutePolyline,
		Distance: t.RouteDistance,
		Duration: t.RouteDuration,
		Phase:    t.RoutePhase,
	}
	if t.RouteComputedAt != nil {
		snap.ComputedAt = *t.RouteComputedAt
	}
	return snap
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"required"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"required"`
	Address   string  `json:"address" bson:"address"`
}
