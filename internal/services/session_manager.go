package services

import (
	"context"
	"fmt"
	"sync"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/pkg/logger"
	"roadassist/pkg/metrics"
	"roadassist/pkg/push"
	ws "roadassist/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionManager owns the live navigation sessions, one per (trip, role). The
// route service is shared across sessions so its memo survives a session
// restart within the process; deviation detectors are per-session state.
type SessionManager struct {
	config   *config.NavigationConfig
	routes   *RouteService
	trips    interfaces.TripRepository
	cache    TripStateCache
	hub      *ws.Hub
	notifier push.Provider
	logger   *logger.Logger
	metrics  *metrics.Collector

	mu       sync.Mutex
	sessions map[string]*NavigationSession
}

func NewSessionManager(cfg *config.NavigationConfig, routes *RouteService, trips interfaces.TripRepository, cache TripStateCache, hub *ws.Hub, notifier push.Provider, log *logger.Logger, collector *metrics.Collector) *SessionManager {
	return &SessionManager{
		config:   cfg,
		routes:   routes,
		trips:    trips,
		cache:    cache,
		hub:      hub,
		notifier: notifier,
		logger:   log,
		metrics:  collector,
		sessions: make(map[string]*NavigationSession),
	}
}

func sessionKey(tripID primitive.ObjectID, role models.Role) string {
	return tripID.Hex() + ":" + string(role)
}

// StartSession loads the trip and launches a navigation session for the role.
// Starting an already-running session returns the existing one.
func (m *SessionManager) StartSession(ctx context.Context, tripID primitive.ObjectID, role models.Role, peerToken string) (*NavigationSession, error) {
	key := sessionKey(tripID, role)

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	trip, err := m.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.Status == models.TripStatusCancelled {
		return nil, fmt.Errorf("trip %s is cancelled", tripID.Hex())
	}

	deps := SessionDeps{
		Config:    m.config,
		Routes:    m.routes,
		Deviation: NewDeviationDetector(m.config, m.logger, m.metrics),
		Trips:     m.trips,
		Cache:     m.cache,
		Hub:       m.hub,
		Notifier:  m.notifier,
		PeerToken: peerToken,
		Watcher:   NewPushLocationSource(),
		Logger:    m.logger,
		Metrics:   m.metrics,
	}

	session := NewNavigationSession(trip, role, deps)
	if err := session.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		// Lost the race: keep the first session.
		m.mu.Unlock()
		session.Close()
		return existing, nil
	}
	m.sessions[key] = session
	m.mu.Unlock()

	return session, nil
}

// Get returns the running session for (trip, role), or nil.
func (m *SessionManager) Get(tripID primitive.ObjectID, role models.Role) *NavigationSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionKey(tripID, role)]
}

// PushLocation routes a transport-delivered provider position to the trip's
// provider session.
func (m *SessionManager) PushLocation(tripID primitive.ObjectID, sample models.LocationSample) error {
	session := m.Get(tripID, models.RoleProvider)
	if session == nil {
		return fmt.Errorf("no active provider session for trip %s", tripID.Hex())
	}
	return session.PushLocation(sample)
}

// StopSession tears down the session for (trip, role) if one is running.
func (m *SessionManager) StopSession(tripID primitive.ObjectID, role models.Role) {
	key := sessionKey(tripID, role)

	m.mu.Lock()
	session, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if ok {
		session.Close()
	}
}

// Shutdown closes every running session. Used on process exit.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*NavigationSession, 0, len(m.sessions))
	for key, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
