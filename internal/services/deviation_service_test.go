package services

import (
	"testing"
	"time"

	"roadassist/internal/models"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"

	"github.com/stretchr/testify/assert"
)

var deviationTestRoute = []utils.Point{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 0.01},
	{Lat: 0, Lng: 0.02},
}

func newDetectorForTest(clock *fakeClock) *DeviationDetector {
	d := NewDeviationDetector(testNavigationConfig(), logger.NewNop(), nil)
	d.now = clock.Now
	return d
}

func onRouteSample() models.LocationSample {
	return models.LocationSample{Latitude: 0, Longitude: 0.005}
}

func offRouteSample() models.LocationSample {
	// Roughly 111 m north of the route, well past the 50 m threshold.
	return models.LocationSample{Latitude: 0.001, Longitude: 0.005}
}

func TestCheckOnRouteNeverFires(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	for i := 0; i < 10; i++ {
		assert.False(t, d.Check(onRouteSample(), deviationTestRoute))
		clock.Advance(5 * time.Second)
	}
}

func TestCheckRequiresSustainedDeviation(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	// First off-route sample starts the timer, nothing fires yet.
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))

	// Still within MinTimeOffRoute.
	clock.Advance(5 * time.Second)
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))

	// Sustained past the threshold: exactly one trigger.
	clock.Advance(6 * time.Second)
	assert.True(t, d.Check(offRouteSample(), deviationTestRoute))
}

func TestCheckReturningOnRouteResetsTimer(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(8 * time.Second)

	// Back on route before the sustained window elapses.
	assert.False(t, d.Check(onRouteSample(), deviationTestRoute))

	// Off route again: the window restarts from zero.
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(8 * time.Second)
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(3 * time.Second)
	assert.True(t, d.Check(offRouteSample(), deviationTestRoute))
}

func TestCheckCooldownBlocksRepeatTriggers(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(11 * time.Second)
	assert.True(t, d.Check(offRouteSample(), deviationTestRoute))

	// Still off route, sustained again, but inside the cooldown window: no
	// second trigger regardless of how many samples arrive.
	for i := 0; i < 10; i++ {
		clock.Advance(10 * time.Second)
		assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	}

	// Once the cooldown elapses the still-sustained deviation fires again.
	clock.Advance(2 * time.Minute)
	assert.True(t, d.Check(offRouteSample(), deviationTestRoute))
}

func TestResetCooldownRestartsWindow(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(11 * time.Second)
	assert.True(t, d.Check(offRouteSample(), deviationTestRoute))

	clock.Advance(90 * time.Second)
	d.ResetCooldown()

	// The manual reset pushed the cooldown forward: 90s + 40s would have
	// cleared the original window but not the reset one.
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
	clock.Advance(40 * time.Second)
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute))
}

func TestCheckShortPathIsIgnored(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	assert.False(t, d.Check(offRouteSample(), nil))
	assert.False(t, d.Check(offRouteSample(), deviationTestRoute[:1]))
}

func TestStateSnapshot(t *testing.T) {
	clock := newFakeClock()
	d := newDetectorForTest(clock)

	state := d.State()
	assert.Nil(t, state.OffRouteSince)
	assert.Nil(t, state.LastAutoRecalc)

	d.Check(offRouteSample(), deviationTestRoute)
	state = d.State()
	assert.NotNil(t, state.OffRouteSince)
}
