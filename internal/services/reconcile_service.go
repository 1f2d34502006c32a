package services

import (
	"context"
	"sync"

	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
	"roadassist/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NavigationView is the single authoritative phase/route view produced by the
// reconciler. Consumers read it instead of any of the three underlying
// sources.
type NavigationView struct {
	Phase      models.NavigationPhase
	PhaseIndex int
	Route      *models.RouteSnapshot
	Estimate   *Estimate
	LastSample *models.LocationSample
}

// Reconciler merges the locally persisted cache, the backend record and
// realtime peer events into one view. The correctness rule is phase-index
// monotonicity, not arrival order: the visible phase index never regresses
// within a trip's lifetime.
type Reconciler struct {
	tripID    primitive.ObjectID
	trips     interfaces.TripRepository
	cache     TripStateCache
	estimator *Estimator
	logger    *logger.Logger
	metrics   *metrics.Collector

	mu   sync.RWMutex
	view NavigationView
}

func NewReconciler(tripID primitive.ObjectID, trips interfaces.TripRepository, cache TripStateCache, estimator *Estimator, log *logger.Logger, collector *metrics.Collector) *Reconciler {
	return &Reconciler{
		tripID:    tripID,
		trips:     trips,
		cache:     cache,
		estimator: estimator,
		logger:    log.WithTripID(tripID),
		metrics:   collector,
		view: NavigationView{
			Phase:      models.PhaseToClient,
			PhaseIndex: models.PhaseToClient.Index(),
		},
	}
}

// Load establishes the initial view: backend first, local cache as fallback.
// When both are available and disagree, the higher phase index wins — backend
// sync can lag a reload, so higher-but-older data is treated as more advanced.
func (r *Reconciler) Load(ctx context.Context) (NavigationView, error) {
	var backendPhase models.NavigationPhase
	var backendRoute *models.RouteSnapshot
	backendOK := false

	trip, err := r.trips.GetByID(ctx, r.tripID)
	if err == nil {
		backendPhase = models.NormalizePhase(trip.Phase)
		backendRoute = trip.RouteSnapshot()
		backendOK = true
	} else {
		r.logger.WithError(err).Warn("Backend read failed on load, falling back to local cache")
	}

	cached, cacheErr := r.cache.Load(ctx, r.tripID)
	if cacheErr != nil {
		r.logger.WithError(cacheErr).Warn("Local cache read failed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case backendOK && cached != nil:
		if cached.Phase.Index() > backendPhase.Index() {
			r.logger.WithFields(map[string]interface{}{
				"cache_phase":   string(cached.Phase),
				"backend_phase": string(backendPhase),
				"type":          "phase_discrepancy",
			}).Warn("Local cache ahead of backend record, selecting higher phase index")
			r.setPhaseLocked(cached.Phase)
			r.setRouteLocked(cached.Route)
		} else {
			r.setPhaseLocked(backendPhase)
			r.setRouteLocked(backendRoute)
		}
	case backendOK:
		r.setPhaseLocked(backendPhase)
		r.setRouteLocked(backendRoute)
	case cached != nil:
		r.setPhaseLocked(cached.Phase)
		r.setRouteLocked(cached.Route)
	default:
		if err != nil {
			return r.view, err
		}
	}

	r.persistLocked(ctx)
	return r.view, nil
}

// Resync forces a backend re-read and merges it through the same monotonic
// rule. Called after a realtime channel drop; the in-memory view is never
// trusted blindly across a gap.
func (r *Reconciler) Resync(ctx context.Context) (NavigationView, error) {
	trip, err := r.trips.GetByID(ctx, r.tripID)
	if err != nil {
		r.logger.WithError(err).Warn("Resync backend read failed, keeping current view")
		return r.View(), err
	}

	phase := models.NormalizePhase(trip.Phase)

	r.mu.Lock()
	defer r.mu.Unlock()

	if phase.Index() > r.view.PhaseIndex {
		r.setPhaseLocked(phase)
		r.clearRouteLocked()
	}
	if snapshot := trip.RouteSnapshot(); !snapshot.IsEmpty() {
		r.setRouteLocked(snapshot)
	}

	r.persistLocked(ctx)
	return r.view, nil
}

// Apply runs one event through the reducer and returns the updated view plus
// whether it changed. All asynchronous sources funnel through here.
func (r *Reconciler) Apply(ctx context.Context, event models.NavEvent) (NavigationView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false

	switch event.Type {
	case models.EventLocationSample:
		if event.Location != nil {
			sample := *event.Location
			r.view.LastSample = &sample
			r.refreshEstimateLocked()
			changed = true
		}

	case models.EventRouteComputed:
		if !event.Route.IsEmpty() {
			r.setRouteLocked(event.Route)
			changed = true
		}

	case models.EventRemotePhaseUpdate:
		changed = r.applyRemotePhaseLocked(event)

	case models.EventRemoteRouteUpdate:
		// Route fields are accepted independently of phase comparisons, but a
		// transient empty payload must not overwrite a good cached route.
		if !event.Route.IsEmpty() {
			r.setRouteLocked(event.Route)
			changed = true
		}

	case models.EventManualRecalc:
		// No view change: the previous snapshot stays until ROUTE_COMPUTED
		// replaces it.

	case models.EventArrivalConfirmed, models.EventFinishConfirmed:
		if event.Phase != nil {
			phase := models.NormalizePhase(*event.Phase)
			if phase.Index() >= r.view.PhaseIndex {
				if phase.Index() > r.view.PhaseIndex {
					r.clearRouteLocked()
				}
				r.setPhaseLocked(phase)
				changed = true
			}
		}
	}

	if changed {
		r.persistLocked(ctx)
	}

	return r.view, changed
}

func (r *Reconciler) applyRemotePhaseLocked(event models.NavEvent) bool {
	if r.metrics != nil {
		r.metrics.RealtimeEvents.Inc()
	}
	if event.Phase == nil {
		return false
	}

	phase := models.NormalizePhase(*event.Phase)
	idx := phase.Index()
	if idx < 0 {
		r.logger.WithField("phase", string(*event.Phase)).Warn("Ignoring unknown phase in realtime event")
		return false
	}

	if idx < r.view.PhaseIndex {
		if r.metrics != nil {
			r.metrics.RegressedEvents.Inc()
		}
		r.logger.WithFields(map[string]interface{}{
			"incoming_phase": string(phase),
			"current_phase":  string(r.view.Phase),
			"type":           "phase_regression",
		}).Warn("Ignoring realtime phase update with lower index")
		return false
	}

	if idx > r.view.PhaseIndex {
		// Phase advanced: drop the displayed route/ETA so stale data is not
		// shown while the replacement is awaited.
		r.clearRouteLocked()
	}
	r.setPhaseLocked(phase)
	return true
}

// View returns a copy of the current authoritative view.
func (r *Reconciler) View() NavigationView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *Reconciler) setPhaseLocked(phase models.NavigationPhase) {
	phase = models.NormalizePhase(phase)
	if r.view.Phase != phase {
		r.logger.LogPhaseTransition(r.tripID, string(r.view.Phase), string(phase))
	}
	r.view.Phase = phase
	r.view.PhaseIndex = phase.Index()
}

func (r *Reconciler) setRouteLocked(route *models.RouteSnapshot) {
	if route.IsEmpty() {
		return
	}
	snapshot := *route
	r.view.Route = &snapshot
	r.refreshEstimateLocked()
}

func (r *Reconciler) clearRouteLocked() {
	r.view.Route = nil
	r.view.Estimate = nil
}

func (r *Reconciler) refreshEstimateLocked() {
	if r.view.Route == nil || r.view.LastSample == nil {
		return
	}
	position := utils.Point{Lat: r.view.LastSample.Latitude, Lng: r.view.LastSample.Longitude}
	if estimate := r.estimator.Estimate(r.view.Route, position); estimate != nil {
		r.view.Estimate = estimate
	}
}

// persistLocked writes the view through to the local cache. Failures are
// logged and swallowed; the cache is a recovery aid, not a source of truth.
func (r *Reconciler) persistLocked(ctx context.Context) {
	state := &CachedTripState{
		Phase: r.view.Phase,
		Route: r.view.Route,
	}
	if err := r.cache.Save(ctx, r.tripID, state); err != nil {
		r.logger.WithError(err).Warn("Failed to persist trip state to local cache")
	}
}
