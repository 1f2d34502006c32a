package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/internal/repositories/interfaces"
	"roadassist/internal/utils"
	"roadassist/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// feeSumTolerance bounds the accepted rounding drift between the split parts
// and the original service value.
const feeSumTolerance = 0.01

// CalculateFee splits a service value into the platform fee and the provider
// net amount. Invalid inputs or a violated sum invariant yield IsValid=false
// with zeroed amounts; callers must refuse to finalize a payment from an
// invalid calculation.
func CalculateFee(serviceValue, feePercentage float64) models.FeeCalculation {
	serviceValue = sanitizeAmount(serviceValue)
	feePercentage = sanitizeAmount(feePercentage)

	calc := models.FeeCalculation{
		ServiceValue:  serviceValue,
		FeePercentage: feePercentage,
	}

	if serviceValue < 0 {
		calc.ValidationError = "service value cannot be negative"
		return calc
	}
	if feePercentage < 0 || feePercentage > 100 {
		calc.ValidationError = "fee percentage must be between 0 and 100"
		return calc
	}

	feeAmount := utils.Round2(serviceValue * feePercentage / 100)
	providerNet := utils.Round2(serviceValue - feeAmount)

	if feeAmount < 0 || providerNet < 0 {
		calc.ValidationError = "computed amounts cannot be negative"
		return calc
	}

	if math.Abs(utils.Round2(feeAmount+providerNet)-utils.Round2(serviceValue)) > feeSumTolerance {
		calc.ValidationError = "rounding error: fee and net amounts do not sum to the service value"
		return calc
	}

	calc.FeeAmount = feeAmount
	calc.ProviderNetAmount = providerNet
	calc.IsValid = true
	return calc
}

// sanitizeAmount maps non-finite values onto 0, mirroring how absent inputs
// are treated upstream.
func sanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ProviderRates carries a provider's commission configuration: an optional
// exemption window and an optional individual rate.
type ProviderRates struct {
	ExemptionUntil *time.Time `json:"exemption_until,omitempty"`
	IndividualRate *float64   `json:"individual_rate,omitempty"`
}

// EffectiveFeeRate resolves the commission rate by priority: an unexpired
// exemption wins (rate 0), then a configured individual rate within [0, 100],
// then the global default.
func EffectiveFeeRate(rates ProviderRates, globalRate float64, now time.Time) (float64, models.RateSource) {
	if rates.ExemptionUntil != nil && rates.ExemptionUntil.After(now) {
		return 0, models.RateSourceExemption
	}
	if rates.IndividualRate != nil && *rates.IndividualRate >= 0 && *rates.IndividualRate <= 100 {
		return *rates.IndividualRate, models.RateSourceIndividual
	}
	return globalRate, models.RateSourceGlobal
}

// NewFeeAuditLog snapshots a valid calculation into an immutable audit record.
func NewFeeAuditLog(tripID primitive.ObjectID, calc models.FeeCalculation, paymentMethod string, confirmedAt time.Time) (*models.FeeAuditLog, error) {
	if !calc.IsValid {
		return nil, fmt.Errorf("cannot create audit log from invalid fee calculation: %s", calc.ValidationError)
	}
	if paymentMethod == "" {
		return nil, fmt.Errorf("payment method is required")
	}

	return &models.FeeAuditLog{
		TripID:        tripID,
		Calculation:   calc,
		PaymentMethod: paymentMethod,
		ConfirmedAt:   confirmedAt,
	}, nil
}

// FeeService finalizes off-platform payments: it resolves the effective rate,
// runs the invariant-checked split and writes the audit record plus the trip's
// commission fields.
type FeeService struct {
	trips  interfaces.TripRepository
	audits interfaces.FeeAuditRepository
	config *config.FeeConfig
	logger *logger.Logger

	now func() time.Time
}

func NewFeeService(trips interfaces.TripRepository, audits interfaces.FeeAuditRepository, cfg *config.FeeConfig, log *logger.Logger) *FeeService {
	return &FeeService{
		trips:  trips,
		audits: audits,
		config: cfg,
		logger: log,
		now:    time.Now,
	}
}

// FinalizeDirectPayment computes the commission split for a direct payment and
// records it. This is the one path where strict correctness overrides
// availability: an invalid calculation blocks finalization outright.
func (s *FeeService) FinalizeDirectPayment(ctx context.Context, tripID primitive.ObjectID, rates ProviderRates, paymentMethod string) (*models.FeeCalculation, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	if !trip.IsDirectPayment {
		return nil, fmt.Errorf("trip is not marked for direct payment")
	}
	if trip.DirectPaymentConfirmed {
		return nil, fmt.Errorf("direct payment already confirmed")
	}

	now := s.now()
	rate, source := EffectiveFeeRate(rates, s.config.GlobalRate, now)

	calc := CalculateFee(trip.AgreedValue, rate)
	calc.RateSource = source
	if !calc.IsValid {
		s.logger.WithTripID(tripID).WithFields(map[string]interface{}{
			"validation_error": calc.ValidationError,
			"service_value":    trip.AgreedValue,
			"fee_percentage":   rate,
		}).Error("Fee calculation invalid, blocking direct payment finalization")
		return &calc, fmt.Errorf("fee calculation invalid: %s", calc.ValidationError)
	}

	entry, err := NewFeeAuditLog(tripID, calc, paymentMethod, now)
	if err != nil {
		return &calc, err
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		return &calc, fmt.Errorf("failed to write fee audit log: %w", err)
	}

	err = s.trips.UpdateFields(ctx, tripID, models.RoleClient, map[string]interface{}{
		"direct_payment_confirmed": true,
		"commission_percent":       calc.FeePercentage,
		"commission_amount":        calc.FeeAmount,
		"provider_net_amount":      calc.ProviderNetAmount,
	})
	if err != nil {
		// The audit record is already durable; the trip fields catch up on the
		// next sync.
		s.logger.WithTripID(tripID).WithError(err).Error("Failed to update trip commission fields after audit write")
	}

	s.logger.LogFeeEvent(tripID, "direct_payment_confirmed", calc.FeeAmount, trip.Currency)

	return &calc, nil
}
