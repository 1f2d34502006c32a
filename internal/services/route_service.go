package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
	"roadassist/pkg/maps"
	"roadassist/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type routeKey struct {
	tripID string
	phase  models.NavigationPhase
}

// RouteService wraps the external routing API and memoizes results per
// (trip, phase). Under unchanged inputs repeated Calculate calls perform at
// most one external call per key; the external API is metered.
type RouteService struct {
	router  maps.Router
	config  *config.MapsConfig
	logger  *logger.Logger
	metrics *metrics.Collector

	mu   sync.Mutex
	memo map[routeKey]*models.RouteSnapshot

	now func() time.Time
}

func NewRouteService(router maps.Router, cfg *config.MapsConfig, log *logger.Logger, collector *metrics.Collector) *RouteService {
	return &RouteService{
		router:  router,
		config:  cfg,
		logger:  log,
		metrics: collector,
		memo:    make(map[routeKey]*models.RouteSnapshot),
		now:     time.Now,
	}
}

// Calculate returns the cached snapshot for (tripID, phase) when present,
// otherwise performs one external routing call and caches the result. A nil
// snapshot with an error means the external call failed; the caller must keep
// its previous valid snapshot.
func (s *RouteService) Calculate(ctx context.Context, origin, destination utils.Point, tripID primitive.ObjectID, phase models.NavigationPhase) (*models.RouteSnapshot, error) {
	key := routeKey{tripID: tripID.Hex(), phase: models.NormalizePhase(phase)}

	s.mu.Lock()
	if cached, ok := s.memo[key]; ok {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RouteCacheHits.Inc()
		}
		snapshot := *cached
		return &snapshot, nil
	}
	s.mu.Unlock()

	return s.compute(ctx, origin, destination, key)
}

// ForceRecalculate bypasses the memo, always calls the external API and
// overwrites the cached snapshot on success.
func (s *RouteService) ForceRecalculate(ctx context.Context, origin, destination utils.Point, tripID primitive.ObjectID, phase models.NavigationPhase) (*models.RouteSnapshot, error) {
	key := routeKey{tripID: tripID.Hex(), phase: models.NormalizePhase(phase)}
	return s.compute(ctx, origin, destination, key)
}

// Clear invalidates all cached snapshots for a trip.
func (s *RouteService) Clear(tripID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.memo {
		if key.tripID == tripID.Hex() {
			delete(s.memo, key)
		}
	}
}

func (s *RouteService) compute(ctx context.Context, origin, destination utils.Point, key routeKey) (*models.RouteSnapshot, error) {
	if !utils.IsValidCoordinates(origin.Lat, origin.Lng) || !utils.IsValidCoordinates(destination.Lat, destination.Lng) {
		return nil, fmt.Errorf("invalid route endpoints: %v -> %v", origin, destination)
	}

	request := &maps.RouteRequest{
		Origin:      maps.Location{Latitude: origin.Lat, Longitude: origin.Lng},
		Destination: maps.Location{Latitude: destination.Lat, Longitude: destination.Lng},
		Mode:        s.config.Mode,
		Avoid:       s.config.Avoid,
	}

	start := s.now()
	if s.metrics != nil {
		s.metrics.RoutingCalls.Inc()
	}

	response, err := s.router.GetRoute(ctx, request)
	if s.metrics != nil {
		s.metrics.RoutingDuration.Observe(s.now().Sub(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RoutingFailures.Inc()
		}
		s.logger.WithFields(map[string]interface{}{
			"trip_id": key.tripID,
			"phase":   string(key.phase),
		}).WithError(err).Warn("Routing call failed, previous snapshot stays in effect")
		return nil, fmt.Errorf("route calculation failed: %w", err)
	}

	snapshot := &models.RouteSnapshot{
		Polyline:   response.Polyline,
		Distance:   response.Distance,
		Duration:   response.Duration,
		Phase:      key.phase,
		ComputedAt: s.now(),
	}

	s.mu.Lock()
	s.memo[key] = snapshot
	s.mu.Unlock()

	result := *snapshot
	return &result, nil
}
