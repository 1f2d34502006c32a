package handlers

import (
	"net/http"
	"time"

	"roadassist/internal/models"
	"roadassist/internal/services"
	"roadassist/internal/utils"

	"github.com/gin-gonic/gin"
)

type NavigationHandler struct {
	sessions *services.SessionManager
}

func NewNavigationHandler(sessions *services.SessionManager) *NavigationHandler {
	return &NavigationHandler{sessions: sessions}
}

// StartSession handles POST /trips/:id/session
func (h *NavigationHandler) StartSession(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req struct {
		Role      models.Role `json:"role" binding:"required"`
		PeerToken string      `json:"peer_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Role != models.RoleProvider && req.Role != models.RoleClient {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_ROLE", "Role must be provider or client")
		return
	}

	session, err := h.sessions.StartSession(c.Request.Context(), tripID, req.Role, req.PeerToken)
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "SESSION_START_FAILED", err.Error())
		return
	}

	utils.CreatedResponse(c, "Navigation session started", session.View())
}

// StopSession handles DELETE /trips/:id/session
func (h *NavigationHandler) StopSession(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	role, ok := parseRole(c)
	if !ok {
		return
	}

	h.sessions.StopSession(tripID, role)
	utils.SuccessResponse(c, "Navigation session stopped", nil)
}

// GetNavigationState handles GET /trips/:id/navigation
func (h *NavigationHandler) GetNavigationState(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	role := models.Role(c.DefaultQuery("role", string(models.RoleProvider)))
	session := h.sessions.Get(tripID, role)
	if session == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "SESSION_NOT_FOUND", "No active navigation session for trip")
		return
	}

	view := session.View()
	utils.SuccessResponse(c, "Navigation state retrieved", gin.H{
		"phase":       view.Phase,
		"phase_index": view.PhaseIndex,
		"route":       view.Route,
		"estimate":    view.Estimate,
		"last_sample": view.LastSample,
		"heading":     session.Heading(),
	})
}

// ReportLocation handles POST /trips/:id/location
func (h *NavigationHandler) ReportLocation(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var sample models.LocationSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if !utils.IsValidCoordinates(sample.Latitude, sample.Longitude) {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_COORDINATES", "Invalid location coordinates")
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	if err := h.sessions.PushLocation(tripID, sample); err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "LOCATION_REJECTED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Location accepted", nil)
}

// ConfirmArrival handles POST /trips/:id/arrive
func (h *NavigationHandler) ConfirmArrival(c *gin.Context) {
	session, ok := h.providerSession(c)
	if !ok {
		return
	}

	view, err := session.ConfirmArrival(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "ARRIVAL_CONFIRM_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Arrival confirmed", view)
}

// FinishService handles POST /trips/:id/finish
func (h *NavigationHandler) FinishService(c *gin.Context) {
	session, ok := h.providerSession(c)
	if !ok {
		return
	}

	view, err := session.FinishService(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "FINISH_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Service finished", view)
}

// Recalculate handles POST /trips/:id/recalculate
func (h *NavigationHandler) Recalculate(c *gin.Context) {
	session, ok := h.providerSession(c)
	if !ok {
		return
	}

	view, err := session.ManualRecalculate(c.Request.Context())
	if err != nil {
		// The previous snapshot stays usable; report the view alongside.
		utils.ErrorResponse(c, http.StatusBadGateway, "RECALCULATION_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Route recalculated", view)
}

// Resync handles POST /trips/:id/resync
func (h *NavigationHandler) Resync(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	role := models.Role(c.DefaultQuery("role", string(models.RoleProvider)))
	session := h.sessions.Get(tripID, role)
	if session == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "SESSION_NOT_FOUND", "No active navigation session for trip")
		return
	}

	view, err := session.Resync(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "RESYNC_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Navigation state resynced", view)
}

func (h *NavigationHandler) providerSession(c *gin.Context) (*services.NavigationSession, bool) {
	tripID, ok := parseTripID(c)
	if !ok {
		return nil, false
	}

	session := h.sessions.Get(tripID, models.RoleProvider)
	if session == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "SESSION_NOT_FOUND", "No active provider session for trip")
		return nil, false
	}
	return session, true
}
