package routes

import (
	"net/http"

	"roadassist/internal/handlers"
	"roadassist/internal/middleware"
	"roadassist/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Trip       *handlers.TripHandler
	Navigation *handlers.NavigationHandler
	WebSocket  *handlers.WebSocketHandler
}

// SetupRoutes wires the HTTP surface: trip lifecycle, navigation session
// operations, the realtime websocket endpoint and operational endpoints.
func SetupRoutes(router *gin.Engine, h Handlers, collector *metrics.Collector) {
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	router.GET("/ws", h.WebSocket.HandleConnection)

	v1 := router.Group("/api/v1")
	{
		trips := v1.Group("/trips")
		{
			trips.POST("", h.Trip.CreateTrip)
			trips.GET("/:id", h.Trip.GetTrip)
			trips.POST("/:id/accept", h.Trip.AcceptTrip)
			trips.POST("/:id/cancel", h.Trip.CancelTrip)
			trips.POST("/:id/direct-payment", h.Trip.ConfirmDirectPayment)

			trips.POST("/:id/session", h.Navigation.StartSession)
			trips.DELETE("/:id/session", h.Navigation.StopSession)
			trips.GET("/:id/navigation", h.Navigation.GetNavigationState)
			trips.POST("/:id/location", h.Navigation.ReportLocation)
			trips.POST("/:id/arrive", h.Navigation.ConfirmArrival)
			trips.POST("/:id/finish", h.Navigation.FinishService)
			trips.POST("/:id/recalculate", h.Navigation.Recalculate)
			trips.POST("/:id/resync", h.Navigation.Resync)
		}
	}
}
