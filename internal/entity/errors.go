package entity

import "errors"

var (
	// Event errors
	ErrEventNotFound    = errors.New("event not found")
	ErrEventFull        = errors.New("event is fully booked")
	ErrEventHasBookings = errors.New("event has active bookings")

	// Slot errors
	ErrSlotRequired = errors.New("time slot selection is required for this event")
	ErrSlotNotFound = errors.New("invalid time slot selected")
	ErrSlotFull     = errors.New("selected time slot is full")

	// Booking errors
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyBooked    = errors.New("participant already booked this event")
	ErrBookingCancelled = errors.New("booking already cancelled")
	ErrNotCheckedIn     = errors.New("participant has not checked in")
	ErrNotConfirmed     = errors.New("booking is not confirmed")
	ErrReferenceTaken   = errors.New("booking reference already taken")

	// Result errors
	ErrResultNotFound = errors.New("result not found")
	ErrResultExists   = errors.New("result already uploaded for this booking")
	ErrSMSAlreadySent = errors.New("sms already sent for this result")
	ErrInvalidOTP     = errors.New("invalid or expired otp")

	// Participant errors
	ErrParticipantNotFound = errors.New("participant not found")

	// General errors
	ErrForbidden    = errors.New("access denied")
	ErrInvalidInput = errors.New("invalid input")
)
