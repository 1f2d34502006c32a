package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleRouter struct {
	client *maps.Client
}

func NewGoogleRouter(apiKey string) (*GoogleRouter, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleRouter{
		client: client,
	}, nil
}

func (g *GoogleRouter) GetRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error) {
	mode := maps.TravelModeDriving
	if request.Mode != "" {
		mode = maps.Mode(request.Mode)
	}

	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", request.Origin.Latitude, request.Origin.Longitude),
		Destination: fmt.Sprintf("%f,%f", request.Destination.Latitude, request.Destination.Longitude),
		Mode:        mode,
	}

	if len(request.Avoid) > 0 {
		avoid := make([]maps.Avoid, len(request.Avoid))
		for i, a := range request.Avoid {
			avoid[i] = maps.Avoid(a)
		}
		req.Avoid = avoid
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	route := routes[0]
	leg := route.Legs[0]

	return &RouteResponse{
		Polyline: route.OverviewPolyline.Points,
		Distance: float64(leg.Distance.Meters),
		Duration: int(leg.Duration.Seconds()),
		Summary:  route.Summary,
	}, nil
}

func (g *GoogleRouter) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}

	if len(results) == 0 {
		return "", nil
	}

	return results[0].FormattedAddress, nil
}
