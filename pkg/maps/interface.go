package maps

import "context"

// Router is the external routing collaborator. Given origin and destination it
// returns an encoded route polyline with total distance and duration.
type Router interface {
	GetRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RouteRequest struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	Mode        string   `json:"mode"`            // driving, walking
	Avoid       []string `json:"avoid,omitempty"` // tolls, highways, ferries
}

type RouteResponse struct {
	Polyline string  `json:"overview_polyline"`
	Distance float64 `json:"distance"` // meters
	Duration int     `json:"duration"` // seconds
	Summary  string  `json:"summary"`
}
