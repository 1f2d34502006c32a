package interfaces

import (
	"context"

	"roadassist/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeeAuditRepository stores the append-only fee audit trail. There is no
// update or delete: a written record is immutable.
type FeeAuditRepository interface {
	Create(ctx context.Context, entry *models.FeeAuditLog) error
	GetByTripID(ctx context.Context, tripID primitive.ObjectID) ([]*models.FeeAuditLog, error)
}
