package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateTripRequest carries the client's service request. Destination is only
// present for two-leg services such as towing.
type CreateTripRequest struct {
	ClientID        primitive.ObjectID `json:"client_id" binding:"required"`
	ServiceType     models.ServiceType `json:"service_type" binding:"required"`
	Origin          models.GeoPoint    `json:"origin" binding:"required"`
	Destination     *models.GeoPoint   `json:"destination"`
	AgreedValue     float64            `json:"agreed_value"`
	Currency        string             `json:"currency"`
	IsDirectPayment bool               `json:"is_direct_payment"`
}

// TripService owns the trip lifecycle outside of active navigation: creation,
// provider assignment and cancellation.
type TripService struct {
	trips  interfaces.TripRepository
	logger *logger.Logger

	now func() time.Time
}

func NewTripService(trips interfaces.TripRepository, log *logger.Logger) *TripService {
	return &TripService{
		trips:  trips,
		logger: log,
		now:    time.Now,
	}
}

// CreateTrip validates the request and persists a new trip in the requested
// state with navigation at the first phase.
func (s *TripService) CreateTrip(ctx context.Context, req *CreateTripRequest) (*models.Trip, error) {
	if !utils.IsValidCoordinates(req.Origin.Latitude, req.Origin.Longitude) {
		return nil, fmt.Errorf("invalid origin coordinates")
	}
	if req.Destination != nil && !utils.IsValidCoordinates(req.Destination.Latitude, req.Destination.Longitude) {
		return nil, fmt.Errorf("invalid destination coordinates")
	}
	if req.AgreedValue < 0 {
		return nil, fmt.Errorf("agreed value cannot be negative")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := s.now()
	trip := &models.Trip{
		TripNumber:      generateTripNumber(),
		ClientID:        req.ClientID,
		ServiceType:     req.ServiceType,
		Status:          models.TripStatusRequested,
		Origin:          req.Origin,
		Destination:     req.Destination,
		AgreedValue:     req.AgreedValue,
		Currency:        currency,
		Phase:           models.PhaseToClient,
		IsDirectPayment: req.IsDirectPayment,
		RequestedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	s.logger.LogTripEvent(trip.ID, "trip_created", map[string]interface{}{
		"service_type":    string(trip.ServiceType),
		"has_destination": trip.HasDestinationLeg(),
	})

	return trip, nil
}

// GetTrip returns the trip by identifier.
func (s *TripService) GetTrip(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	return s.trips.GetByID(ctx, id)
}

// GetActiveTripForProvider returns the provider's in-flight trip, if any.
func (s *TripService) GetActiveTripForProvider(ctx context.Context, providerID primitive.ObjectID) (*models.Trip, error) {
	return s.trips.GetActiveByProvider(ctx, providerID)
}

// AcceptTrip assigns a provider to a requested trip.
func (s *TripService) AcceptTrip(ctx context.Context, tripID, providerID primitive.ObjectID) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusRequested {
		return nil, fmt.Errorf("trip %s cannot be accepted from status %q", tripID.Hex(), trip.Status)
	}

	now := s.now()
	err = s.trips.UpdateFields(ctx, tripID, models.RoleProvider, map[string]interface{}{
		"provider_id": providerID,
		"status":      models.TripStatusAccepted,
		"started_at":  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept trip: %w", err)
	}

	s.logger.LogTripEvent(tripID, "trip_accepted", map[string]interface{}{
		"provider_id": providerID.Hex(),
	})

	return s.trips.GetByID(ctx, tripID)
}

// CancelTrip cancels a trip that has not finished.
func (s *TripService) CancelTrip(ctx context.Context, tripID primitive.ObjectID, role models.Role) error {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.Status == models.TripStatusCompleted || trip.Status == models.TripStatusCancelled {
		return fmt.Errorf("trip %s cannot be cancelled from status %q", tripID.Hex(), trip.Status)
	}

	err = s.trips.UpdateFields(ctx, tripID, role, map[string]interface{}{
		"status":       models.TripStatusCancelled,
		"cancelled_at": s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to cancel trip: %w", err)
	}

	s.logger.LogTripEvent(tripID, "trip_cancelled", map[string]interface{}{
		"cancelled_by": string(role),
	})

	return nil
}

func generateTripNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "RA-" + suffix
}
