package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rosehq/screening-backend/internal/entity"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError maps domain sentinels to HTTP statuses. Unclassified
// errors become opaque 500s; the logger keeps the detail.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrBookingNotFound),
		errors.Is(err, entity.ErrResultNotFound),
		errors.Is(err, entity.ErrParticipantNotFound):
		status = http.StatusNotFound

	case errors.Is(err, entity.ErrEventFull),
		errors.Is(err, entity.ErrSlotFull),
		errors.Is(err, entity.ErrAlreadyBooked),
		errors.Is(err, entity.ErrBookingCancelled),
		errors.Is(err, entity.ErrEventHasBookings),
		errors.Is(err, entity.ErrNotConfirmed),
		errors.Is(err, entity.ErrNotCheckedIn),
		errors.Is(err, entity.ErrResultExists),
		errors.Is(err, entity.ErrSMSAlreadySent):
		status = http.StatusConflict

	case errors.Is(err, entity.ErrSlotRequired),
		errors.Is(err, entity.ErrSlotNotFound),
		errors.Is(err, entity.ErrInvalidOTP),
		errors.Is(err, entity.ErrInvalidInput):
		status = http.StatusBadRequest

	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		logrus.Errorf("Internal error: %v", err)
		c.JSON(status, ErrorResponse{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(status, ErrorResponse{Success: false, Error: err.Error()})
}
