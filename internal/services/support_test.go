package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeClock provides a controllable time source for services that accept an
// injected now function.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeTripRepo is an in-memory TripRepository.
type fakeTripRepo struct {
	mu      sync.Mutex
	trips   map[primitive.ObjectID]*models.Trip
	failGet bool

	updateFieldCalls []map[string]interface{}
	locationWrites   int
	failLocation     bool
}

func newFakeTripRepo(trips ...*models.Trip) *fakeTripRepo {
	repo := &fakeTripRepo{trips: make(map[primitive.ObjectID]*models.Trip)}
	for _, trip := range trips {
		repo.trips[trip.ID] = trip
	}
	return repo
}

func (r *fakeTripRepo) Create(ctx context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	r.trips[trip.ID] = trip
	return nil
}

func (r *fakeTripRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet {
		return nil, fmt.Errorf("backend unavailable")
	}
	trip, ok := r.trips[id]
	if !ok {
		return nil, fmt.Errorf("trip not found")
	}
	copied := *trip
	return &copied, nil
}

func (r *fakeTripRepo) UpdateFields(ctx context.Context, id primitive.ObjectID, role models.Role, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updateFieldCalls = append(r.updateFieldCalls, fields)

	trip, ok := r.trips[id]
	if !ok {
		return fmt.Errorf("trip not found")
	}
	for key, value := range fields {
		switch key {
		case "navigation_phase":
			if phase, ok := value.(models.NavigationPhase); ok {
				trip.Phase = phase
			}
		case "status":
			if status, ok := value.(models.TripStatus); ok {
				trip.Status = status
			}
		case "arrived_at_pickup":
			trip.ArrivedAtPickup = value == true
		case "arrived_at_destination":
			trip.ArrivedAtDestination = value == true
		case "direct_payment_confirmed":
			trip.DirectPaymentConfirmed = value == true
		case "commission_percent":
			if v, ok := value.(float64); ok {
				trip.CommissionPercent = v
			}
		case "commission_amount":
			if v, ok := value.(float64); ok {
				trip.CommissionAmount = v
			}
		case "provider_net_amount":
			if v, ok := value.(float64); ok {
				trip.ProviderNetAmount = v
			}
		case "provider_id":
			if v, ok := value.(primitive.ObjectID); ok {
				trip.ProviderID = &v
			}
		}
	}
	return nil
}

func (r *fakeTripRepo) UpdatePhase(ctx context.Context, id primitive.ObjectID, phase models.NavigationPhase) error {
	return r.UpdateFields(ctx, id, models.RoleProvider, map[string]interface{}{"navigation_phase": phase})
}

func (r *fakeTripRepo) UpdateRouteSnapshot(ctx context.Context, id primitive.ObjectID, snapshot *models.RouteSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.trips[id]
	if !ok {
		return fmt.Errorf("trip not found")
	}
	trip.RoutePolyline = snapshot.Polyline
	trip.RouteDistance = snapshot.Distance
	trip.RouteDuration = snapshot.Duration
	trip.RoutePhase = snapshot.Phase
	computedAt := snapshot.ComputedAt
	trip.RouteComputedAt = &computedAt
	return nil
}

func (r *fakeTripRepo) UpdateProviderLocation(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failLocation {
		return fmt.Errorf("backend unavailable")
	}
	trip, ok := r.trips[id]
	if !ok {
		return fmt.Errorf("trip not found")
	}
	r.locationWrites++
	copied := *sample
	trip.ProviderLocation = &copied
	return nil
}

func (r *fakeTripRepo) GetActiveByProvider(ctx context.Context, providerID primitive.ObjectID) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, trip := range r.trips {
		if trip.ProviderID != nil && *trip.ProviderID == providerID && trip.Status != models.TripStatusCompleted && trip.Status != models.TripStatusCancelled {
			copied := *trip
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no active trip")
}

func (r *fakeTripRepo) setFailGet(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failGet = fail
}

// memoryStateCache is an in-memory TripStateCache.
type memoryStateCache struct {
	mu     sync.Mutex
	states map[string]*CachedTripState
}

func newMemoryStateCache() *memoryStateCache {
	return &memoryStateCache{states: make(map[string]*CachedTripState)}
}

func (c *memoryStateCache) Save(ctx context.Context, tripID primitive.ObjectID, state *CachedTripState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *state
	copied.UpdatedAt = time.Now()
	c.states[tripID.Hex()] = &copied
	return nil
}

func (c *memoryStateCache) Load(ctx context.Context, tripID primitive.ObjectID) (*CachedTripState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[tripID.Hex()]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (c *memoryStateCache) Clear(ctx context.Context, tripID primitive.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, tripID.Hex())
	return nil
}

// fakeAuditRepo is an in-memory FeeAuditRepository.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.FeeAuditLog
	fail    bool
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *models.FeeAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("audit write failed")
	}
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeAuditRepo) GetByTripID(ctx context.Context, tripID primitive.ObjectID) ([]*models.FeeAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FeeAuditLog
	for _, entry := range r.entries {
		if entry.TripID == tripID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// fakeRouter is a maps.Router returning canned responses and counting calls.
type fakeRouter struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	response maps.RouteResponse
}

func (f *fakeRouter) GetRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("routing unavailable")
	}
	response := f.response
	return &response, nil
}

func (f *fakeRouter) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return "1 Test Street", nil
}

func (f *fakeRouter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRouter) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func testNavigationConfig() *config.NavigationConfig {
	return &config.NavigationConfig{
		LocationInterval:         5 * time.Second,
		LocationMaxAge:           30 * time.Second,
		HeadingNoiseFloorMeters:  5,
		HeadingTick:              50 * time.Millisecond,
		HeadingFactor:            0.15,
		DeviationThresholdMeters: 50,
		MinTimeOffRoute:          10 * time.Second,
		MinRecalcInterval:        2 * time.Minute,
		ManualRecalcDebounce:     3 * time.Second,
	}
}

func testMapsConfig() *config.MapsConfig {
	return &config.MapsConfig{Provider: "google", Mode: "driving"}
}
