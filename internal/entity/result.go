package entity

import "time"

type TestResult struct {
	ID             string     `json:"id" db:"id"`
	BookingID      string     `json:"booking_id" db:"booking_id"`
	ResultCategory string     `json:"result_category" db:"result_category"`
	ResultNotes    string     `json:"result_notes,omitempty" db:"result_notes"`
	ResultFileKey  string     `json:"-" db:"result_file_key"`
	ResultFileURL  string     `json:"result_file_url,omitempty" db:"result_file_url"`
	UploadedBy     string     `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt     time.Time  `json:"uploaded_at" db:"uploaded_at"`
	SMSSent        bool       `json:"sms_sent" db:"sms_sent"`
	SMSSentAt      *time.Time `json:"sms_sent_at,omitempty" db:"sms_sent_at"`
}

// ParticipantResult is the participant-facing result row: available
// results and still-pending checked-in bookings are merged into one list.
type ParticipantResult struct {
	ID              string    `json:"id"`
	EventName       string    `json:"event_name"`
	EventDate       string    `json:"event_date"`
	ResultCategory  string    `json:"result_category"`
	ResultAvailable bool      `json:"result_available"`
	UploadedAt      time.Time `json:"uploaded_at"`
}
