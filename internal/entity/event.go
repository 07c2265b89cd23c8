package entity

import (
	"time"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
)

type Event struct {
	ID             string       `json:"id" db:"id"`
	Name           string       `json:"name" db:"name"`
	EventDate      time.Time    `json:"event_date" db:"event_date"`
	EventTime      string       `json:"event_time" db:"event_time"`
	Address        string       `json:"address" db:"address"`
	TimeSlots      TimeSlotList `json:"time_slots,omitempty" db:"time_slots"`
	TotalSlots     int          `json:"total_slots" db:"total_slots"`
	AvailableSlots int          `json:"available_slots" db:"available_slots"`
	AdditionalInfo string       `json:"additional_info,omitempty" db:"additional_info"`
	Status         EventStatus  `json:"status" db:"status"`
	CreatedBy      string       `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// Slotted reports whether capacity is tracked per time slot instead of
// at the event level.
func (e *Event) Slotted() bool {
	return len(e.TimeSlots) > 0
}

// EventParticipant is a joined row for the admin participant listing.
type EventParticipant struct {
	BookingID        string        `json:"booking_id"`
	BookingReference string        `json:"booking_reference"`
	BookingStatus    BookingStatus `json:"booking_status"`
	BookedAt         time.Time     `json:"booked_at"`
	Name             string        `json:"name"`
	PhoneNumber      string        `json:"phone_number"`
	MykadID          string        `json:"mykad_id"`
}
