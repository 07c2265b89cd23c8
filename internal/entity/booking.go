package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCheckedIn BookingStatus = "checked_in"
)

type Booking struct {
	ID               string        `json:"id" db:"id"`
	ParticipantID    string        `json:"participant_id" db:"participant_id"`
	EventID          string        `json:"event_id" db:"event_id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	Status           BookingStatus `json:"booking_status" db:"booking_status"`
	TimeSlotStart    *string       `json:"time_slot_start,omitempty" db:"time_slot_start"`
	TimeSlotEnd      *string       `json:"time_slot_end,omitempty" db:"time_slot_end"`
	BookedAt         time.Time     `json:"booked_at" db:"booked_at"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// Active reports whether the booking still holds capacity.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCancelled
}

// HasSlot reports whether the booking was made against a time slot.
func (b *Booking) HasSlot() bool {
	return b.TimeSlotStart != nil && b.TimeSlotEnd != nil
}
