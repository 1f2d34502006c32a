package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"
	"roadassist/pkg/metrics"
	"roadassist/pkg/push"
	ws "roadassist/pkg/websocket"
)

// NavigationSession composes the location provider/tracker, route service,
// deviation detector and reconciler into the end-to-end navigation loop for
// one role on one trip. All of its background work stops deterministically on
// Close: no callback can write to a discarded trip.
type NavigationSession struct {
	trip   *models.Trip
	role   models.Role
	config *config.NavigationConfig

	routes     *RouteService
	deviation  *DeviationDetector
	reconciler *Reconciler
	provider   *LocationProvider
	tracker    *RemoteLocationTracker
	trips      interfaces.TripRepository
	hub        *ws.Hub
	notifier   push.Provider
	peerToken  string
	logger     *logger.Logger
	metrics    *metrics.Collector

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	events           <-chan []byte
	cancelSub        func()
	lastManualRecalc time.Time
	closed           bool

	now func() time.Time
}

// SessionDeps carries the injected collaborators for a session. Nothing is
// reached through ambient globals.
type SessionDeps struct {
	Config    *config.NavigationConfig
	Routes    *RouteService
	Deviation *DeviationDetector
	Trips     interfaces.TripRepository
	Cache     TripStateCache
	Hub       *ws.Hub
	Notifier  push.Provider
	PeerToken string
	Watcher   LocationWatcher
	Logger    *logger.Logger
	Metrics   *metrics.Collector
}

func NewNavigationSession(trip *models.Trip, role models.Role, deps SessionDeps) *NavigationSession {
	estimator := NewEstimator(deps.Config.DeviationThresholdMeters * 10)
	log := deps.Logger.WithTripID(trip.ID).WithRole(string(role))

	s := &NavigationSession{
		trip:       trip,
		role:       role,
		config:     deps.Config,
		routes:     deps.Routes,
		deviation:  deps.Deviation,
		reconciler: NewReconciler(trip.ID, deps.Trips, deps.Cache, estimator, deps.Logger, deps.Metrics),
		trips:      deps.Trips,
		hub:        deps.Hub,
		notifier:   deps.Notifier,
		peerToken:  deps.PeerToken,
		logger:     log,
		metrics:    deps.Metrics,
		now:        time.Now,
	}

	if role == models.RoleProvider {
		s.provider = NewLocationProvider(deps.Watcher, deps.Config, log)
	} else {
		s.tracker = NewRemoteLocationTracker(trip.ID, deps.Trips, deps.Hub, log)
	}

	return s
}

// Start loads the reconciled view and launches the session loops.
func (s *NavigationSession) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.reconciler.Load(ctx); err != nil {
		// Neither backend nor cache produced a view; the trip's requested
		// state still lets navigation begin.
		s.logger.WithError(err).Warn("Initial load failed, starting from trip record defaults")
	}

	events, cancelSub := s.hub.SubscribeTrip(s.trip.ID)
	s.mu.Lock()
	s.events = events
	s.cancelSub = cancelSub
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runRealtimeLoop(ctx)

	switch s.role {
	case models.RoleProvider:
		if err := s.provider.Start(ctx); err != nil {
			// Location denied is a blocking error state for the provider.
			s.teardown()
			return err
		}
		s.wg.Add(2)
		go s.runLocationLoop(ctx)
		go s.runHeadingLoop(ctx)

	case models.RoleClient:
		if err := s.tracker.Start(ctx); err != nil {
			s.teardown()
			return err
		}
		s.wg.Add(1)
		go s.runTrackerLoop(ctx)

	default:
		s.teardown()
		return fmt.Errorf("unknown session role %q", s.role)
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	s.logger.Info("Navigation session started")

	return nil
}

// View returns the current authoritative navigation view.
func (s *NavigationSession) View() NavigationView {
	return s.reconciler.View()
}

// Heading returns the smoothed display heading (provider role).
func (s *NavigationSession) Heading() float64 {
	if s.provider == nil {
		return 0
	}
	return s.provider.Heading()
}

// PushLocation feeds a transport-delivered provider position into the session
// when the watcher is a push source.
func (s *NavigationSession) PushLocation(sample models.LocationSample) error {
	if s.role != models.RoleProvider {
		return fmt.Errorf("only the provider role reports locations")
	}
	source, ok := s.provider.watcher.(*PushLocationSource)
	if !ok {
		return fmt.Errorf("session location source does not accept pushed samples")
	}
	return source.Push(sample)
}

// ConfirmArrival advances the trip when the provider reaches the client. For
// a two-leg trip the cached route is cleared and a fresh route toward the
// destination is computed before display resumes.
func (s *NavigationSession) ConfirmArrival(ctx context.Context) (NavigationView, error) {
	if s.role != models.RoleProvider {
		return s.View(), fmt.Errorf("only the provider confirms arrival")
	}

	view := s.View()
	if view.Phase != models.PhaseToClient {
		return view, fmt.Errorf("cannot confirm arrival from phase %q", view.Phase)
	}

	next, err := models.NextPhase(view.Phase, s.trip.HasDestinationLeg())
	if err != nil {
		return view, err
	}

	fields := map[string]interface{}{
		"navigation_phase":  next,
		"arrived_at_pickup": true,
		"status":            models.TripStatusInProgress,
	}
	if err := s.trips.UpdateFields(ctx, s.trip.ID, models.RoleProvider, fields); err != nil {
		// Availability over immediate consistency: the local transition
		// proceeds and the next resync converges the backend.
		s.logger.WithError(err).Error("Failed to persist arrival confirmation")
	}

	view, _ = s.reconciler.Apply(ctx, models.NavEvent{
		Type:  models.EventArrivalConfirmed,
		Phase: &next,
	})

	s.hub.PublishTripUpdate(s.trip.ID, map[string]interface{}{
		"navigation_phase":  next,
		"arrived_at_pickup": true,
	})
	s.notifyPeer(ctx, "Provider arrived", "Your provider has arrived at the pickup location")

	if next == models.PhaseToDestination {
		s.recalculateRoute(ctx, false)
		view = s.View()
	}

	return view, nil
}

// FinishService finalizes the navigation lifecycle.
func (s *NavigationSession) FinishService(ctx context.Context) (NavigationView, error) {
	if s.role != models.RoleProvider {
		return s.View(), fmt.Errorf("only the provider finishes the service")
	}

	view := s.View()
	if view.Phase == models.PhaseFinished {
		return view, nil
	}

	next := models.PhaseFinished
	now := s.now()

	fields := map[string]interface{}{
		"navigation_phase": next,
		"status":           models.TripStatusCompleted,
		"finished_at":      now,
	}
	if view.Phase == models.PhaseToDestination {
		fields["arrived_at_destination"] = true
	}
	if err := s.trips.UpdateFields(ctx, s.trip.ID, models.RoleProvider, fields); err != nil {
		s.logger.WithError(err).Error("Failed to persist service completion")
	}

	view, _ = s.reconciler.Apply(ctx, models.NavEvent{
		Type:  models.EventFinishConfirmed,
		Phase: &next,
	})

	s.hub.PublishTripUpdate(s.trip.ID, map[string]interface{}{
		"navigation_phase": next,
		"status":           models.TripStatusCompleted,
	})
	s.notifyPeer(ctx, "Service finished", "Your service has been completed")

	return view, nil
}

// ManualRecalculate recomputes the route on user request. It bypasses the
// deviation cooldown but is itself debounced against rapid repeated taps.
func (s *NavigationSession) ManualRecalculate(ctx context.Context) (NavigationView, error) {
	s.mu.Lock()
	now := s.now()
	if !s.lastManualRecalc.IsZero() && now.Sub(s.lastManualRecalc) < s.config.ManualRecalcDebounce {
		s.mu.Unlock()
		return s.View(), nil
	}
	s.lastManualRecalc = now
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ManualRecalcs.Inc()
	}
	s.deviation.ResetCooldown()
	s.reconciler.Apply(ctx, models.NavEvent{Type: models.EventManualRecalc})

	if err := s.recalculateRoute(ctx, true); err != nil {
		// Stale-but-valid beats nothing: the previous snapshot stays.
		return s.View(), err
	}
	return s.View(), nil
}

// Resync forces a backend re-read through the monotonic merge.
func (s *NavigationSession) Resync(ctx context.Context) (NavigationView, error) {
	return s.reconciler.Resync(ctx)
}

// Close tears the session down deterministically: loops cancelled, realtime
// channel unsubscribed, location watch released.
func (s *NavigationSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.teardown()
	s.wg.Wait()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	s.logger.Info("Navigation session closed")
}

func (s *NavigationSession) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	cancelSub := s.cancelSub
	s.mu.Unlock()
	if cancelSub != nil {
		cancelSub()
	}
	if s.provider != nil {
		s.provider.Stop()
	}
	if s.tracker != nil {
		s.tracker.Stop()
	}
}

func (s *NavigationSession) runRealtimeLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		events := s.events
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				// Channel dropped mid-trip: re-pull the backend record and
				// reapply monotonicity before resubscribing.
				s.reconciler.Resync(ctx)
				newEvents, cancelSub := s.hub.SubscribeTrip(s.trip.ID)
				s.mu.Lock()
				s.events = newEvents
				s.cancelSub = cancelSub
				s.mu.Unlock()
				continue
			}
			s.handleRealtimeEvent(ctx, raw)
		}
	}
}

func (s *NavigationSession) handleRealtimeEvent(ctx context.Context, raw []byte) {
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	update := decodeTripUpdate(msg.Data)
	if update == nil {
		return
	}

	if update.Phase != nil {
		s.reconciler.Apply(ctx, models.NavEvent{
			Type:  models.EventRemotePhaseUpdate,
			Phase: update.Phase,
		})
	}

	if update.RoutePolyline != nil && *update.RoutePolyline != "" {
		snapshot := &models.RouteSnapshot{
			Polyline:   *update.RoutePolyline,
			ComputedAt: s.now(),
			Phase:      s.View().Phase,
		}
		if update.RouteDistance != nil {
			snapshot.Distance = *update.RouteDistance
		}
		if update.RouteDuration != nil {
			snapshot.Duration = *update.RouteDuration
		}
		s.reconciler.Apply(ctx, models.NavEvent{
			Type:  models.EventRemoteRouteUpdate,
			Route: snapshot,
		})
	}
}

func (s *NavigationSession) runLocationLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-s.provider.Samples():
			if !ok {
				return
			}
			s.handleLocationSample(ctx, sample)
		}
	}
}

func (s *NavigationSession) handleLocationSample(ctx context.Context, sample models.LocationSample) {
	view, _ := s.reconciler.Apply(ctx, models.NavEvent{
		Type:     models.EventLocationSample,
		Location: &sample,
	})

	// Telemetry write: logged and swallowed on failure, the next throttled
	// tick retries.
	if err := s.trips.UpdateProviderLocation(ctx, s.trip.ID, &sample); err != nil {
		if s.metrics != nil {
			s.metrics.LocationWriteFails.Inc()
		}
		s.logger.WithError(err).Warn("Provider location write failed")
	} else if s.metrics != nil {
		s.metrics.LocationWrites.Inc()
	}

	s.hub.PublishTripUpdate(s.trip.ID, map[string]interface{}{
		"provider_location": sample,
	})

	if view.Route.IsEmpty() || view.Route.Phase != view.Phase {
		s.recalculateRoute(ctx, false)
		return
	}

	path := utils.DecodePolyline(view.Route.Polyline)
	if s.deviation.Check(sample, path) {
		// Silent recomputation, no user-facing notice.
		s.recalculateRoute(ctx, true)
	}
}

func (s *NavigationSession) runHeadingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HeadingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.provider.SmoothTick()
		}
	}
}

func (s *NavigationSession) runTrackerLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-s.tracker.Updates():
			if !ok {
				return
			}
			s.reconciler.Apply(ctx, models.NavEvent{
				Type:     models.EventLocationSample,
				Location: &sample,
			})
		}
	}
}

// legDestination resolves where the current phase is navigating to.
func (s *NavigationSession) legDestination(phase models.NavigationPhase) (utils.Point, bool) {
	switch models.NormalizePhase(phase) {
	case models.PhaseToClient:
		return utils.Point{Lat: s.trip.Origin.Latitude, Lng: s.trip.Origin.Longitude}, true
	case models.PhaseToDestination:
		if s.trip.Destination == nil {
			return utils.Point{}, false
		}
		return utils.Point{Lat: s.trip.Destination.Latitude, Lng: s.trip.Destination.Longitude}, true
	default:
		return utils.Point{}, false
	}
}

func (s *NavigationSession) recalculateRoute(ctx context.Context, force bool) error {
	view := s.View()

	destination, ok := s.legDestination(view.Phase)
	if !ok {
		return nil
	}

	var origin utils.Point
	if current := s.currentPosition(view); current != nil {
		origin = *current
	} else {
		return nil
	}

	var snapshot *models.RouteSnapshot
	var err error
	if force {
		snapshot, err = s.routes.ForceRecalculate(ctx, origin, destination, s.trip.ID, view.Phase)
	} else {
		snapshot, err = s.routes.Calculate(ctx, origin, destination, s.trip.ID, view.Phase)
	}
	if err != nil {
		// Previous valid snapshot stays in effect; navigation remains usable
		// with stale-but-valid data.
		s.logger.WithError(err).Warn("Route recomputation failed")
		return err
	}

	s.reconciler.Apply(ctx, models.NavEvent{
		Type:  models.EventRouteComputed,
		Route: snapshot,
	})

	if err := s.trips.UpdateRouteSnapshot(ctx, s.trip.ID, snapshot); err != nil {
		s.logger.WithError(err).Warn("Route snapshot write failed")
	}

	s.hub.PublishTripUpdate(s.trip.ID, map[string]interface{}{
		"route_polyline": snapshot.Polyline,
		"route_distance": snapshot.Distance,
		"route_duration": snapshot.Duration,
	})

	return nil
}

func (s *NavigationSession) currentPosition(view NavigationView) *utils.Point {
	if view.LastSample != nil {
		return &utils.Point{Lat: view.LastSample.Latitude, Lng: view.LastSample.Longitude}
	}
	if s.provider != nil {
		if current := s.provider.Current(); current != nil {
			return &utils.Point{Lat: current.Latitude, Lng: current.Longitude}
		}
	}
	return nil
}

func (s *NavigationSession) notifyPeer(ctx context.Context, title, body string) {
	if s.notifier == nil || s.peerToken == "" {
		return
	}

	request := &push.NotificationRequest{
		Token:    s.peerToken,
		Title:    title,
		Body:     body,
		Priority: "high",
		Data: map[string]string{
			"trip_id": s.trip.ID.Hex(),
		},
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.notifier.SendNotification(sendCtx, request); err != nil {
			s.logger.WithError(err).Warn("Push trigger failed")
		}
	}()
}
