package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RateSource string

const (
	RateSourceExemption  RateSource = "exemption"
	RateSourceIndividual RateSource = "individual"
	RateSourceGlobal     RateSource = "global"
)

// FeeCalculation is the result of splitting a service value between the
// platform commission and the provider's net amount.
type FeeCalculation struct {
	ServiceValue      float64    `json:"service_value" bson:"service_value"`
	FeePercentage     float64    `json:"fee_percentage" bson:"fee_percentage"`
	FeeAmount         float64    `json:"fee_amount" bson:"fee_amount"`
	ProviderNetAmount float64    `json:"provider_net_amount" bson:"provider_net_amount"`
	IsValid           bool       `json:"is_valid" bson:"is_valid"`
	ValidationError   string     `json:"validation_error,omitempty" bson:"validation_error,omitempty"`
	RateSource        RateSource `json:"rate_source,omitempty" bson:"rate_source,omitempty"`
}

// FeeAuditLog is the append-only record written when a direct payment is
// finalized. Never mutated after creation.
type FeeAuditLog struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TripID        primitive.ObjectID `json:"trip_id" bson:"trip_id" validate:"required"`
	Calculation   FeeCalculation     `json:"calculation" bson:"calculation" validate:"required"`
	PaymentMethod string             `json:"payment_method" bson:"payment_method" validate:"required"`
	ConfirmedAt   time.Time          `json:"confirmed_at" bson:"confirmed_at"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
