package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rosehq/screening-backend/internal/service"
	"github.com/rosehq/screening-backend/internal/transport/middleware"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}
	req.ParticipantID = c.GetString(middleware.ParticipantIDKey)

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "booking confirmed",
		Data:    booking,
	})
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}

	participantID := c.GetString(middleware.ParticipantIDKey)

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), bookingID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "booking cancelled",
		Data:    booking,
	})
}

func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	participantID := c.GetString(middleware.ParticipantIDKey)

	bookings, err := h.bookingService.GetParticipantBookings(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) GetEventBookings(c *gin.Context) {
	eventID := c.Param("id")
	if _, err := uuid.Parse(eventID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid event id"})
		return
	}

	bookings, err := h.bookingService.GetEventBookings(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) CheckIn(c *gin.Context) {
	bookingID := c.Param("id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}

	booking, err := h.bookingService.CheckIn(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "participant checked in",
		Data:    booking,
	})
}
