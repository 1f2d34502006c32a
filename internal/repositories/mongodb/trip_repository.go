package mongodb

import (
	"context"
	"fmt"
	"time"

	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type tripRepository struct {
	collection *mongo.Collection
}

func NewTripRepository(db *mongo.Database) interfaces.TripRepository {
	return &tripRepository{
		collection: db.Collection("trips"),
	}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	trip.ID = primitive.NewObjectID()
	trip.RequestedAt = time.Now()
	trip.CreatedAt = time.Now()
	trip.UpdatedAt = time.Now()
	if trip.Phase == "" {
		trip.Phase = models.PhaseToClient
	}

	_, err := r.collection.InsertOne(ctx, trip)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	return nil
}

func (r *tripRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	var trip models.Trip
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("trip not found")
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	// Older app builds persisted legacy phase names.
	trip.Phase = models.NormalizePhase(trip.Phase)
	trip.RoutePhase = models.NormalizePhase(trip.RoutePhase)

	return &trip, nil
}

func (r *tripRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, role models.Role, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_by"] = string(role)
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	return nil
}

func (r *tripRepository) UpdatePhase(ctx context.Context, id primitive.ObjectID, phase models.NavigationPhase) error {
	return r.UpdateFields(ctx, id, models.RoleProvider, map[string]interface{}{
		"navigation_phase": phase,
	})
}

func (r *tripRepository) UpdateRouteSnapshot(ctx context.Context, id primitive.ObjectID, snapshot *models.RouteSnapshot) error {
	return r.UpdateFields(ctx, id, models.RoleProvider, map[string]interface{}{
		"route_polyline":    snapshot.Polyline,
		"route_distance":    snapshot.Distance,
		"route_duration":    snapshot.Duration,
		"route_phase":       snapshot.Phase,
		"route_computed_at": snapshot.ComputedAt,
	})
}

func (r *tripRepository) UpdateProviderLocation(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample) error {
	return r.UpdateFields(ctx, id, models.RoleProvider, map[string]interface{}{
		"provider_location": sample,
	})
}

func (r *tripRepository) GetActiveByProvider(ctx context.Context, providerID primitive.ObjectID) (*models.Trip, error) {
	filter := bson.M{
		"provider_id": providerID,
		"status":      bson.M{"$in": []models.TripStatus{models.TripStatusAccepted, models.TripStatusInProgress}},
	}

	var trip models.Trip
	err := r.collection.FindOne(ctx, filter).Decode(&trip)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("no active trip for provider")
		}
		return nil, fmt.Errorf("failed to get active trip: %w", err)
	}

	trip.Phase = models.NormalizePhase(trip.Phase)
	trip.RoutePhase = models.NormalizePhase(trip.RoutePhase)

	return &trip, nil
}
