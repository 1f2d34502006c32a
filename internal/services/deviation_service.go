package services

import (
	"sync"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
	"roadassist/pkg/metrics"
)

// DeviationDetector compares throttled location samples against the cached
// route geometry. An automatic recomputation fires only after the provider has
// been off-route continuously for MinTimeOffRoute AND the MinRecalcInterval
// cooldown has elapsed; the two-stage debounce bounds metered API calls under
// noisy GPS.
type DeviationDetector struct {
	config  *config.NavigationConfig
	logger  *logger.Logger
	metrics *metrics.Collector

	mu             sync.Mutex
	offRouteSince  *time.Time
	lastAutoRecalc time.Time

	now func() time.Time
}

func NewDeviationDetector(cfg *config.NavigationConfig, log *logger.Logger, collector *metrics.Collector) *DeviationDetector {
	return &DeviationDetector{
		config:  cfg,
		logger:  log,
		metrics: collector,
		now:     time.Now,
	}
}

// Check evaluates one throttled sample against the route path and reports
// whether an automatic recomputation should fire now. When it returns true the
// internal timers are already reset; the caller performs the recomputation
// silently (no user-facing notice).
func (d *DeviationDetector) Check(sample models.LocationSample, route []utils.Point) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	projection, ok := utils.ProjectOntoPath(route, utils.Point{Lat: sample.Latitude, Lng: sample.Longitude})
	if !ok {
		d.offRouteSince = nil
		return false
	}

	if projection.DistanceMeters <= d.config.DeviationThresholdMeters {
		d.offRouteSince = nil
		return false
	}

	now := d.now()
	if d.offRouteSince == nil {
		since := now
		d.offRouteSince = &since
		return false
	}

	if now.Sub(*d.offRouteSince) < d.config.MinTimeOffRoute {
		return false
	}

	if !d.lastAutoRecalc.IsZero() && now.Sub(d.lastAutoRecalc) < d.config.MinRecalcInterval {
		return false
	}

	d.lastAutoRecalc = now
	d.offRouteSince = nil

	if d.metrics != nil {
		d.metrics.DeviationRecalcs.Inc()
	}
	d.logger.WithFields(map[string]interface{}{
		"distance_m": projection.DistanceMeters,
		"type":       "deviation",
	}).Info("Sustained route deviation, triggering recomputation")

	return true
}

// ResetCooldown restarts the cooldown window. Manual recomputation always
// resets it regardless of deviation state.
func (d *DeviationDetector) ResetCooldown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastAutoRecalc = d.now()
	d.offRouteSince = nil
}

// State returns a snapshot of the detector's timers for diagnostics.
func (d *DeviationDetector) State() models.DeviationState {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := models.DeviationState{
		Cooldown: d.config.MinRecalcInterval,
	}
	if d.offRouteSince != nil {
		since := *d.offRouteSince
		state.OffRouteSince = &since
	}
	if !d.lastAutoRecalc.IsZero() {
		last := d.lastAutoRecalc
		state.LastAutoRecalc = &last
	}
	return state
}
