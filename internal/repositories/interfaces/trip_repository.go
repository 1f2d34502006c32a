package interfaces

import (
	"context"

	"roadassist/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TripRepository is the backend trip record, the single mutable shared
// resource. Correctness relies on field-level write partitioning by role, not
// on locking: only the provider writes location/route/phase fields.
type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error)

	// UpdateFields applies an explicit partial field update attributed to the
	// acting role.
	UpdateFields(ctx context.Context, id primitive.ObjectID, role models.Role, fields map[string]interface{}) error

	UpdatePhase(ctx context.Context, id primitive.ObjectID, phase models.NavigationPhase) error
	UpdateRouteSnapshot(ctx context.Context, id primitive.ObjectID, snapshot *models.RouteSnapshot) error
	UpdateProviderLocation(ctx context.Context, id primitive.ObjectID, sample *models.LocationSample) error

	GetActiveByProvider(ctx context.Context, providerID primitive.ObjectID) (*models.Trip, error)
}
