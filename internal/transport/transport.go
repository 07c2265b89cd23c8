package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosehq/screening-backend/internal/transport/middleware"
)

func InitRoutes(eventHandler *EventHandler, bookingHandler *BookingHandler, resultHandler *ResultHandler, artifactHandler *ArtifactHandler) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30))

	// API routes
	api := router.Group("/api/v1")
	{
		// Public event routes
		events := api.Group("/events")
		{
			events.GET("", eventHandler.GetPublishedEvents)
			events.GET("/:id", eventHandler.GetEvent)
		}

		// Participant routes
		participant := api.Group("", middleware.ParticipantIdentity())
		{
			participant.POST("/bookings", bookingHandler.CreateBooking)
			participant.GET("/bookings", bookingHandler.GetMyBookings)
			participant.DELETE("/bookings/:id", bookingHandler.CancelBooking)

			participant.GET("/results", resultHandler.GetMyResults)
			participant.POST("/results/:id/request-otp", resultHandler.RequestOTP)
			participant.POST("/results/:id/view", resultHandler.ViewResult)
		}

		// Admin routes
		admin := api.Group("/admin", middleware.AdminIdentity())
		{
			admin.POST("/events", eventHandler.CreateEvent)
			admin.GET("/events", eventHandler.GetAllEvents)
			admin.PUT("/events/:id", eventHandler.UpdateEvent)
			admin.DELETE("/events/:id", eventHandler.DeleteEvent)
			admin.GET("/events/:id/bookings", bookingHandler.GetEventBookings)
			admin.GET("/events/:id/participants", eventHandler.GetEventParticipants)
			admin.GET("/events/:id/participants/export", eventHandler.ExportParticipants)
			admin.GET("/events/:id/stats", eventHandler.GetEventStats)

			admin.GET("/bookings/:id", bookingHandler.GetBooking)
			admin.POST("/bookings/:id/checkin", bookingHandler.CheckIn)

			admin.POST("/results", resultHandler.UploadResult)
			admin.GET("/results", resultHandler.GetAllResults)
			admin.GET("/results/:id", resultHandler.GetResult)
			admin.POST("/results/:id/send-sms", resultHandler.SendResultSMS)

			admin.GET("/dashboard/stats", eventHandler.GetDashboardStats)
		}
	}

	// Signed artifact downloads
	router.GET("/artifacts/*key", artifactHandler.Download)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return router
}
