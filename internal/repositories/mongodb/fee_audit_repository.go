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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type feeAuditRepository struct {
	collection *mongo.Collection
}

func NewFeeAuditRepository(db *mongo.Database) interfaces.FeeAuditRepository {
	return &feeAuditRepository{
		collection: db.Collection("fee_audit_logs"),
	}
}

func (r *feeAuditRepository) Create(ctx context.Context, entry *models.FeeAuditLog) error {
	if !entry.Calculation.IsValid {
		return fmt.Errorf("refusing to persist invalid fee calculation: %s", entry.Calculation.ValidationError)
	}

	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to create fee audit log: %w", err)
	}

	return nil
}

func (r *feeAuditRepository) GetByTripID(ctx context.Context, tripID primitive.ObjectID) ([]*models.FeeAuditLog, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.FeeAuditLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode fee audit logs: %w", err)
	}

	return entries, nil
}
