package models

// NavEventType names the asynchronous sources that can mutate the navigation
// view. All of them funnel through the reconciler's single reducer instead of
// mutating shared state independently.
type NavEventType string

const (
	EventLocationSample    NavEventType = "LOCATION_SAMPLE"
	EventRouteComputed     NavEventType = "ROUTE_COMPUTED"
	EventRemotePhaseUpdate NavEventType = "REMOTE_PHASE_UPDATE"
	EventRemoteRouteUpdate NavEventType = "REMOTE_ROUTE_UPDATE"
	EventManualRecalc      NavEventType = "MANUAL_RECALC"
	EventArrivalConfirmed  NavEventType = "ARRIVAL_CONFIRMED"
	EventFinishConfirmed   NavEventType = "FINISH_CONFIRMED"
)

// NavEvent is one unit of input to the reconciliation reducer. Only the fields
// relevant to the event type are set; realtime payloads may be partial.
type NavEvent struct {
	Type     NavEventType     `json:"type"`
	Phase    *NavigationPhase `json:"phase,omitempty"`
	Route    *RouteSnapshot   `json:"route,omitempty"`
	Location *LocationSample  `json:"location,omitempty"`
}

// TripUpdate is the partial field set delivered by one realtime event. Nil
// pointers mean the field was absent from the payload.
type TripUpdate struct {
	Phase         *NavigationPhase `json:"navigation_phase,omitempty"`
	RoutePolyline *string          `json:"route_polyline,omitempty"`
	RouteDistance *float64         `json:"route_distance,omitempty"`
	RouteDuration *int             `json:"route_duration,omitempty"`
	ArrivedAtPickup        *bool   `json:"arrived_at_pickup,omitempty"`
	ArrivedAtDestination   *bool   `json:"arrived_at_destination,omitempty"`
	DirectPaymentConfirmed *bool   `json:"direct_payment_confirmed,omitempty"`
	ProviderLocation       *LocationSample `json:"provider_location,omitempty"`
}
