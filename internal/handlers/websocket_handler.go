package handlers

import (
	"net/http"

	"roadassist/internal/utils"
	ws "roadassist/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection handles GET /ws?user_id=<hex>&role=<provider|client>
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Query("user_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID")
		return
	}

	role := c.DefaultQuery("role", "client")
	if role != "provider" && role != "client" {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_ROLE", "Role must be provider or client")
		return
	}

	if _, err := ws.ServeWS(h.hub, c.Writer, c.Request, userID, role); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "Failed to upgrade connection")
		return
	}
}
