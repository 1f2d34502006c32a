package services

import (
	"context"
	"testing"

	"roadassist/internal/models"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
	"roadassist/pkg/maps"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRouteServiceForTest(router *fakeRouter) *RouteService {
	return NewRouteService(router, testMapsConfig(), logger.NewNop(), nil)
}

func testRouteResponse() maps.RouteResponse {
	return maps.RouteResponse{
		Polyline: utils.EncodePolyline([]utils.Point{
			{Lat: -23.5505, Lng: -46.6333},
			{Lat: -23.5510, Lng: -46.6340},
		}),
		Distance: 1200,
		Duration: 240,
		Summary:  "Av. Paulista",
	}
}

func TestCalculateMemoizesPerTripAndPhase(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)
	tripID := primitive.NewObjectID()
	origin := utils.Point{Lat: -23.55, Lng: -46.63}
	destination := utils.Point{Lat: -23.56, Lng: -46.64}

	first, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Repeated calls under the same key never hit the external API again.
	for i := 0; i < 5; i++ {
		snapshot, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
		require.NoError(t, err)
		assert.Equal(t, first.Polyline, snapshot.Polyline)
	}
	assert.Equal(t, 1, router.callCount())

	// A different phase is a different key.
	_, err = svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToDestination)
	require.NoError(t, err)
	assert.Equal(t, 2, router.callCount())
}

func TestCalculateNormalizesLegacyPhaseKeys(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)
	tripID := primitive.NewObjectID()
	origin := utils.Point{Lat: -23.55, Lng: -46.63}
	destination := utils.Point{Lat: -23.56, Lng: -46.64}

	_, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)

	// Legacy alias maps onto the same memo key.
	_, err = svc.Calculate(context.Background(), origin, destination, tripID, "going_to_vehicle")
	require.NoError(t, err)
	assert.Equal(t, 1, router.callCount())
}

func TestForceRecalculateBypassesMemo(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)
	tripID := primitive.NewObjectID()
	origin := utils.Point{Lat: -23.55, Lng: -46.63}
	destination := utils.Point{Lat: -23.56, Lng: -46.64}

	_, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)

	_, err = svc.ForceRecalculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	assert.Equal(t, 2, router.callCount())

	// The forced result replaces the memo entry.
	_, err = svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	assert.Equal(t, 2, router.callCount())
}

func TestCalculateFailureKeepsMemoUntouched(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)
	tripID := primitive.NewObjectID()
	origin := utils.Point{Lat: -23.55, Lng: -46.63}
	destination := utils.Point{Lat: -23.56, Lng: -46.64}

	first, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)

	router.setFail(true)
	snapshot, err := svc.ForceRecalculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.Error(t, err)
	assert.Nil(t, snapshot)

	// The previous snapshot is still served from the memo.
	router.setFail(false)
	cached, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	assert.Equal(t, first.Polyline, cached.Polyline)
	assert.Equal(t, 2, router.callCount())
}

func TestCalculateRejectsInvalidEndpoints(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)

	_, err := svc.Calculate(context.Background(), utils.Point{Lat: 200, Lng: 0}, utils.Point{Lat: 0, Lng: 0}, primitive.NewObjectID(), models.PhaseToClient)
	assert.Error(t, err)
	assert.Zero(t, router.callCount())
}

func TestClearInvalidatesTrip(t *testing.T) {
	router := &fakeRouter{response: testRouteResponse()}
	svc := newRouteServiceForTest(router)
	tripID := primitive.NewObjectID()
	other := primitive.NewObjectID()
	origin := utils.Point{Lat: -23.55, Lng: -46.63}
	destination := utils.Point{Lat: -23.56, Lng: -46.64}

	_, err := svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	_, err = svc.Calculate(context.Background(), origin, destination, other, models.PhaseToClient)
	require.NoError(t, err)

	svc.Clear(tripID)

	_, err = svc.Calculate(context.Background(), origin, destination, tripID, models.PhaseToClient)
	require.NoError(t, err)
	assert.Equal(t, 3, router.callCount())

	// The other trip's entry survived.
	_, err = svc.Calculate(context.Background(), origin, destination, other, models.PhaseToClient)
	require.NoError(t, err)
	assert.Equal(t, 3, router.callCount())
}
