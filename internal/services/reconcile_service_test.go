package services

import (
	"context"
	"testing"

	"roadassist/internal/models"
	"roadassist/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func phasePtr(p models.NavigationPhase) *models.NavigationPhase {
	return &p
}

func newReconcilerForTest(trip *models.Trip, cache TripStateCache) (*Reconciler, *fakeTripRepo) {
	repo := newFakeTripRepo(trip)
	r := NewReconciler(trip.ID, repo, cache, NewEstimator(500), logger.NewNop(), nil)
	return r, repo
}

func reconcilerTestTrip() *models.Trip {
	return &models.Trip{
		ID:     primitive.NewObjectID(),
		Status: models.TripStatusAccepted,
		Phase:  models.PhaseToClient,
	}
}

func TestLoadPrefersBackend(t *testing.T) {
	trip := reconcilerTestTrip()
	trip.Phase = models.PhaseToDestination
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())

	view, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
	assert.Equal(t, 2, view.PhaseIndex)
}

func TestLoadHigherCachePhaseWins(t *testing.T) {
	// Backend sync lagged a reload: cache says to_destination, backend still
	// says to_client. The higher phase index wins.
	trip := reconcilerTestTrip()
	cache := newMemoryStateCache()
	require.NoError(t, cache.Save(context.Background(), trip.ID, &CachedTripState{
		Phase: models.PhaseToDestination,
	}))

	r, _ := newReconcilerForTest(trip, cache)
	view, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestLoadLowerCachePhaseLoses(t *testing.T) {
	trip := reconcilerTestTrip()
	trip.Phase = models.PhaseToDestination
	cache := newMemoryStateCache()
	require.NoError(t, cache.Save(context.Background(), trip.ID, &CachedTripState{
		Phase: models.PhaseToClient,
	}))

	r, _ := newReconcilerForTest(trip, cache)
	view, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestLoadFallsBackToCacheWhenBackendDown(t *testing.T) {
	trip := reconcilerTestTrip()
	cache := newMemoryStateCache()
	require.NoError(t, cache.Save(context.Background(), trip.ID, &CachedTripState{
		Phase: models.PhaseAtClient,
	}))

	r, repo := newReconcilerForTest(trip, cache)
	repo.setFailGet(true)

	view, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAtClient, view.Phase)
}

func TestLoadNormalizesLegacyBackendPhase(t *testing.T) {
	trip := reconcilerTestTrip()
	trip.Phase = "going_to_destination"
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())

	view, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestApplyRemotePhaseRegressionIgnored(t *testing.T) {
	trip := reconcilerTestTrip()
	trip.Phase = models.PhaseToDestination
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr(models.PhaseToClient),
	})
	assert.False(t, changed)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestApplyRemotePhaseAdvanceClearsRoute(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	snapshot := testSnapshot()
	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRouteComputed,
		Route: snapshot,
	})
	require.True(t, changed)
	require.NotNil(t, view.Route)

	view, changed = r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr(models.PhaseToDestination),
	})
	require.True(t, changed)
	assert.Equal(t, models.PhaseToDestination, view.Phase)

	// The displayed route and estimate belong to the previous leg; both drop
	// until a replacement arrives.
	assert.Nil(t, view.Route)
	assert.Nil(t, view.Estimate)
}

func TestApplyRemotePhaseEqualIndexIsIdempotent(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRouteComputed,
		Route: testSnapshot(),
	})

	view, _ := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr(models.PhaseToClient),
	})

	// Same phase index: the route survives.
	assert.NotNil(t, view.Route)
}

func TestApplyRemotePhaseUnknownIgnored(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr("bogus_phase"),
	})
	assert.False(t, changed)
	assert.Equal(t, models.PhaseToClient, view.Phase)
}

func TestApplyRemotePhaseNormalizesLegacyNames(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr("going_to_destination"),
	})
	require.True(t, changed)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestApplyEmptyRoutePayloadIgnored(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRouteComputed,
		Route: testSnapshot(),
	})

	// A transient empty payload must not wipe a good cached route.
	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemoteRouteUpdate,
		Route: &models.RouteSnapshot{},
	})
	assert.False(t, changed)
	assert.NotNil(t, view.Route)

	view, changed = r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemoteRouteUpdate,
		Route: nil,
	})
	assert.False(t, changed)
	assert.NotNil(t, view.Route)
}

func TestApplyLocationSampleRefreshesEstimate(t *testing.T) {
	trip := reconcilerTestTrip()
	r, _ := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRouteComputed,
		Route: testSnapshot(),
	})

	view, changed := r.Apply(context.Background(), models.NavEvent{
		Type:     models.EventLocationSample,
		Location: &models.LocationSample{Latitude: 0, Longitude: 0.01},
	})
	require.True(t, changed)
	require.NotNil(t, view.Estimate)
	assert.True(t, view.Estimate.Projected)
	assert.InDelta(t, 1000, view.Estimate.RemainingMeters, 50)
}

func TestApplyPersistsToCache(t *testing.T) {
	trip := reconcilerTestTrip()
	cache := newMemoryStateCache()
	r, _ := newReconcilerForTest(trip, cache)
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr(models.PhaseToDestination),
	})

	state, err := cache.Load(context.Background(), trip.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.PhaseToDestination, state.Phase)
}

func TestResyncMergesMonotonically(t *testing.T) {
	trip := reconcilerTestTrip()
	r, repo := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	// Local state advanced past what the backend will report.
	r.Apply(context.Background(), models.NavEvent{
		Type:  models.EventRemotePhaseUpdate,
		Phase: phasePtr(models.PhaseToDestination),
	})

	view, err := r.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)

	// Backend moved ahead while the realtime channel was down.
	repo.trips[trip.ID].Phase = models.PhaseFinished
	view, err = r.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFinished, view.Phase)
}

func TestResyncBackendFailureKeepsView(t *testing.T) {
	trip := reconcilerTestTrip()
	trip.Phase = models.PhaseToDestination
	r, repo := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	repo.setFailGet(true)
	view, err := r.Resync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, models.PhaseToDestination, view.Phase)
}

func TestResyncPicksUpBackendRoute(t *testing.T) {
	trip := reconcilerTestTrip()
	r, repo := newReconcilerForTest(trip, newMemoryStateCache())
	_, err := r.Load(context.Background())
	require.NoError(t, err)

	snapshot := testSnapshot()
	require.NoError(t, repo.UpdateRouteSnapshot(context.Background(), trip.ID, snapshot))

	view, err := r.Resync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, view.Route)
	assert.Equal(t, snapshot.Polyline, view.Route.Polyline)
}
