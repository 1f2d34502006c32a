package handlers

import (
	"net/http"

	"roadassist/internal/models"
	"roadassist/internal/services"
	"roadassist/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripHandler struct {
	trips *services.TripService
	fees  *services.FeeService
}

func NewTripHandler(trips *services.TripService, fees *services.FeeService) *TripHandler {
	return &TripHandler{
		trips: trips,
		fees:  fees,
	}
}

// CreateTrip handles POST /trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req services.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "TRIP_CREATE_FAILED", err.Error())
		return
	}

	utils.CreatedResponse(c, "Trip created successfully", trip)
}

// GetTrip handles GET /trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	trip, err := h.trips.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "TRIP_NOT_FOUND", "Trip not found")
		return
	}

	utils.SuccessResponse(c, "Trip retrieved successfully", trip)
}

// AcceptTrip handles POST /trips/:id/accept
func (h *TripHandler) AcceptTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req struct {
		ProviderID string `json:"provider_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	providerID, err := primitive.ObjectIDFromHex(req.ProviderID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_PROVIDER_ID", "Invalid provider ID")
		return
	}

	trip, err := h.trips.AcceptTrip(c.Request.Context(), tripID, providerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "TRIP_ACCEPT_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Trip accepted successfully", trip)
}

// CancelTrip handles POST /trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	role, ok := parseRole(c)
	if !ok {
		return
	}

	if err := h.trips.CancelTrip(c.Request.Context(), tripID, role); err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "TRIP_CANCEL_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Trip cancelled successfully", nil)
}

// ConfirmDirectPayment handles POST /trips/:id/direct-payment
func (h *TripHandler) ConfirmDirectPayment(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req struct {
		PaymentMethod string                 `json:"payment_method" binding:"required"`
		Rates         services.ProviderRates `json:"rates"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	calc, err := h.fees.FinalizeDirectPayment(c.Request.Context(), tripID, req.Rates, req.PaymentMethod)
	if err != nil {
		if calc != nil && !calc.IsValid {
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "FEE_CALCULATION_INVALID", err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusConflict, "PAYMENT_CONFIRM_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Direct payment confirmed successfully", calc)
}

func parseTripID(c *gin.Context) (primitive.ObjectID, bool) {
	tripID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_TRIP_ID", "Invalid trip ID")
		return primitive.NilObjectID, false
	}
	return tripID, true
}

func parseRole(c *gin.Context) (models.Role, bool) {
	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return "", false
	}
	if req.Role != models.RoleProvider && req.Role != models.RoleClient {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_ROLE", "Role must be provider or client")
		return "", false
	}
	return req.Role, true
}
