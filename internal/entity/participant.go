package entity

import "time"

type Participant struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	MykadID     string    `json:"mykad_id" db:"mykad_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
