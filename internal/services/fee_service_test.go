package services

import (
	"context"
	"math"
	"testing"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/models"
	"roadassist/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCalculateFeeBasicSplit(t *testing.T) {
	calc := CalculateFee(100, 20)

	require.True(t, calc.IsValid)
	assert.Equal(t, 20.0, calc.FeeAmount)
	assert.Equal(t, 80.0, calc.ProviderNetAmount)
	assert.Empty(t, calc.ValidationError)
}

func TestCalculateFeeRounding(t *testing.T) {
	calc := CalculateFee(99.99, 15)

	require.True(t, calc.IsValid)
	assert.InDelta(t, calc.ServiceValue, calc.FeeAmount+calc.ProviderNetAmount, 0.01)
	assert.Equal(t, calc.FeeAmount, math.Round(calc.FeeAmount*100)/100)
	assert.Equal(t, calc.ProviderNetAmount, math.Round(calc.ProviderNetAmount*100)/100)
}

func TestCalculateFeeInvalidInputs(t *testing.T) {
	cases := []struct {
		name       string
		value, pct float64
	}{
		{"negative value", -10, 20},
		{"negative percentage", 100, -5},
		{"percentage above 100", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calc := CalculateFee(tc.value, tc.pct)
			assert.False(t, calc.IsValid)
			assert.NotEmpty(t, calc.ValidationError)
			assert.Zero(t, calc.FeeAmount)
			assert.Zero(t, calc.ProviderNetAmount)
		})
	}
}

func TestCalculateFeeNonFiniteInputs(t *testing.T) {
	// NaN and infinity normalize to zero before validation.
	calc := CalculateFee(math.NaN(), 20)
	require.True(t, calc.IsValid)
	assert.Zero(t, calc.ServiceValue)
	assert.Zero(t, calc.FeeAmount)

	calc = CalculateFee(100, math.Inf(1))
	require.True(t, calc.IsValid)
	assert.Zero(t, calc.FeePercentage)
	assert.Equal(t, 100.0, calc.ProviderNetAmount)
}

func TestCalculateFeeZeroPercent(t *testing.T) {
	calc := CalculateFee(50, 0)
	require.True(t, calc.IsValid)
	assert.Zero(t, calc.FeeAmount)
	assert.Equal(t, 50.0, calc.ProviderNetAmount)
}

func TestEffectiveFeeRatePrecedence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)
	individual := 12.5

	// Unexpired exemption wins over everything.
	rate, source := EffectiveFeeRate(ProviderRates{ExemptionUntil: &future, IndividualRate: &individual}, 20, now)
	assert.Zero(t, rate)
	assert.Equal(t, models.RateSourceExemption, source)

	// Expired exemption falls through to the individual rate.
	rate, source = EffectiveFeeRate(ProviderRates{ExemptionUntil: &past, IndividualRate: &individual}, 20, now)
	assert.Equal(t, individual, rate)
	assert.Equal(t, models.RateSourceIndividual, source)

	// Out-of-range individual rate falls through to the global default.
	bad := 150.0
	rate, source = EffectiveFeeRate(ProviderRates{IndividualRate: &bad}, 20, now)
	assert.Equal(t, 20.0, rate)
	assert.Equal(t, models.RateSourceGlobal, source)

	// Nothing configured: global default.
	rate, source = EffectiveFeeRate(ProviderRates{}, 20, now)
	assert.Equal(t, 20.0, rate)
	assert.Equal(t, models.RateSourceGlobal, source)
}

func TestNewFeeAuditLogRejectsInvalidCalculation(t *testing.T) {
	calc := CalculateFee(-1, 20)
	_, err := NewFeeAuditLog(primitive.NewObjectID(), calc, "cash", time.Now())
	assert.Error(t, err)

	valid := CalculateFee(100, 20)
	_, err = NewFeeAuditLog(primitive.NewObjectID(), valid, "", time.Now())
	assert.Error(t, err)
}

func newFeeServiceForTest(trips *fakeTripRepo, audits *fakeAuditRepo) *FeeService {
	svc := NewFeeService(trips, audits, &config.FeeConfig{GlobalRate: 20}, logger.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestFinalizeDirectPayment(t *testing.T) {
	trip := &models.Trip{
		ID:              primitive.NewObjectID(),
		AgreedValue:     150,
		Currency:        "USD",
		IsDirectPayment: true,
	}
	trips := newFakeTripRepo(trip)
	audits := &fakeAuditRepo{}
	svc := newFeeServiceForTest(trips, audits)

	calc, err := svc.FinalizeDirectPayment(context.Background(), trip.ID, ProviderRates{}, "cash")
	require.NoError(t, err)
	require.True(t, calc.IsValid)
	assert.Equal(t, 30.0, calc.FeeAmount)
	assert.Equal(t, 120.0, calc.ProviderNetAmount)
	assert.Equal(t, models.RateSourceGlobal, calc.RateSource)

	// Audit entry written before the trip fields.
	require.Len(t, audits.entries, 1)
	assert.Equal(t, trip.ID, audits.entries[0].TripID)
	assert.Equal(t, "cash", audits.entries[0].PaymentMethod)

	updated, err := trips.GetByID(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.True(t, updated.DirectPaymentConfirmed)
	assert.Equal(t, 30.0, updated.CommissionAmount)
	assert.Equal(t, 120.0, updated.ProviderNetAmount)
}

func TestFinalizeDirectPaymentAlreadyConfirmed(t *testing.T) {
	trip := &models.Trip{
		ID:                     primitive.NewObjectID(),
		AgreedValue:            150,
		IsDirectPayment:        true,
		DirectPaymentConfirmed: true,
	}
	trips := newFakeTripRepo(trip)
	audits := &fakeAuditRepo{}
	svc := newFeeServiceForTest(trips, audits)

	_, err := svc.FinalizeDirectPayment(context.Background(), trip.ID, ProviderRates{}, "cash")
	assert.Error(t, err)
	assert.Empty(t, audits.entries)
}

func TestFinalizeDirectPaymentNotDirect(t *testing.T) {
	trip := &models.Trip{
		ID:          primitive.NewObjectID(),
		AgreedValue: 150,
	}
	trips := newFakeTripRepo(trip)
	svc := newFeeServiceForTest(trips, &fakeAuditRepo{})

	_, err := svc.FinalizeDirectPayment(context.Background(), trip.ID, ProviderRates{}, "cash")
	assert.Error(t, err)
}

func TestFinalizeDirectPaymentBlocksInvalidCalculation(t *testing.T) {
	trip := &models.Trip{
		ID:              primitive.NewObjectID(),
		AgreedValue:     -50,
		IsDirectPayment: true,
	}
	trips := newFakeTripRepo(trip)
	audits := &fakeAuditRepo{}
	svc := newFeeServiceForTest(trips, audits)

	calc, err := svc.FinalizeDirectPayment(context.Background(), trip.ID, ProviderRates{}, "cash")
	require.Error(t, err)
	require.NotNil(t, calc)
	assert.False(t, calc.IsValid)

	// Nothing written anywhere on an invalid calculation.
	assert.Empty(t, audits.entries)
	updated, _ := trips.GetByID(context.Background(), trip.ID)
	assert.False(t, updated.DirectPaymentConfirmed)
}

func TestFinalizeDirectPaymentAuditWriteFailureStopsConfirmation(t *testing.T) {
	trip := &models.Trip{
		ID:              primitive.NewObjectID(),
		AgreedValue:     100,
		IsDirectPayment: true,
	}
	trips := newFakeTripRepo(trip)
	audits := &fakeAuditRepo{fail: true}
	svc := newFeeServiceForTest(trips, audits)

	_, err := svc.FinalizeDirectPayment(context.Background(), trip.ID, ProviderRates{}, "pix")
	require.Error(t, err)

	updated, _ := trips.GetByID(context.Background(), trip.ID)
	assert.False(t, updated.DirectPaymentConfirmed)
}
