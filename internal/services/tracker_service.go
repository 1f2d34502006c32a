package services

import (
	"context"
	"encoding/json"
	"sync"

	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/pkg/logger"
	ws "roadassist/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RemoteLocationTracker follows the peer's last known position for the client
// role. It has no GPS access: it seeds from the backend record and then
// consumes realtime trip updates.
type RemoteLocationTracker struct {
	tripID primitive.ObjectID
	trips  interfaces.TripRepository
	hub    *ws.Hub
	logger *logger.Logger

	mu   sync.RWMutex
	last *models.LocationSample

	out         chan models.LocationSample
	unsubscribe func()
}

func NewRemoteLocationTracker(tripID primitive.ObjectID, trips interfaces.TripRepository, hub *ws.Hub, log *logger.Logger) *RemoteLocationTracker {
	return &RemoteLocationTracker{
		tripID: tripID,
		trips:  trips,
		hub:    hub,
		logger: log,
		out:    make(chan models.LocationSample, 16),
	}
}

// Start seeds the tracker from the backend record and subscribes to realtime
// updates for the trip.
func (t *RemoteLocationTracker) Start(ctx context.Context) error {
	trip, err := t.trips.GetByID(ctx, t.tripID)
	if err != nil {
		// The realtime stream still delivers positions; a failed seed only
		// delays the first fix.
		t.logger.WithTripID(t.tripID).WithError(err).Warn("Failed to seed tracker from backend")
	} else if trip.ProviderLocation != nil {
		t.mu.Lock()
		t.last = trip.ProviderLocation
		t.mu.Unlock()
	}

	events, cancel := t.hub.SubscribeTrip(t.tripID)
	t.unsubscribe = cancel

	go func() {
		defer close(t.out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-events:
				if !ok {
					return
				}
				t.ingest(raw)
			}
		}
	}()

	return nil
}

func (t *RemoteLocationTracker) ingest(raw []byte) {
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	update := decodeTripUpdate(msg.Data)
	if update == nil || update.ProviderLocation == nil {
		return
	}

	t.mu.Lock()
	t.last = update.ProviderLocation
	t.mu.Unlock()

	select {
	case t.out <- *update.ProviderLocation:
	default:
	}
}

// Last returns the peer's last known position, or nil before the first fix.
func (t *RemoteLocationTracker) Last() *models.LocationSample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.last == nil {
		return nil
	}
	sample := *t.last
	return &sample
}

// Updates streams position changes as they arrive.
func (t *RemoteLocationTracker) Updates() <-chan models.LocationSample {
	return t.out
}

// Stop unsubscribes from the realtime channel.
func (t *RemoteLocationTracker) Stop() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

// decodeTripUpdate converts a realtime event payload into a typed partial
// update. Payloads may carry any subset of fields; absent fields stay nil.
func decodeTripUpdate(data map[string]interface{}) *models.TripUpdate {
	if len(data) == 0 {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var update models.TripUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil
	}

	if update.Phase != nil {
		normalized := models.NormalizePhase(*update.Phase)
		update.Phase = &normalized
	}

	return &update
}
