package repository

import (
	"context"
	"time"

	"github.com/rosehq/screening-backend/internal/entity"
)

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	GetAll(ctx context.Context, publishedOnly bool) ([]*entity.Event, error)

	// Update applies mutate to the event under its row lock, so edits
	// never overwrite a concurrent booking's capacity changes.
	Update(ctx context.Context, id string, mutate func(event *entity.Event) error) (*entity.Event, error)
	Delete(ctx context.Context, id string) error

	// Statistics
	CountActive(ctx context.Context, from time.Time) (int64, error)
	GetBookingStats(ctx context.Context, eventID string) (*entity.EventBookingStats, error)
}

type BookingRepository interface {
	// Create runs the whole allocation as one transaction: event row lock,
	// duplicate check, capacity check and decrement, booking insert.
	Create(ctx context.Context, booking *entity.Booking) error

	// Cancel runs the reverse transaction: status flip plus capacity release.
	Cancel(ctx context.Context, id string) (*entity.Booking, error)

	GetByID(ctx context.Context, id string) (*entity.Booking, error)
	GetByParticipant(ctx context.Context, participantID string) ([]*entity.Booking, error)
	GetByEvent(ctx context.Context, eventID string) ([]*entity.Booking, error)
	GetParticipantsByEvent(ctx context.Context, eventID string) ([]*entity.EventParticipant, error)
	UpdateStatus(ctx context.Context, id string, status entity.BookingStatus) error

	// Statistics
	CountDistinctParticipants(ctx context.Context) (int64, error)
	CountBookedSince(ctx context.Context, since time.Time) (int64, error)
}

type ParticipantRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Participant, error)
	GetByPhone(ctx context.Context, phone string) (*entity.Participant, error)
}

type ResultRepository interface {
	Create(ctx context.Context, result *entity.TestResult) error
	GetByID(ctx context.Context, id string) (*entity.TestResult, error)
	GetByBookingID(ctx context.Context, bookingID string) (*entity.TestResult, error)
	GetAll(ctx context.Context) ([]*entity.TestResult, error)
	MarkSMSSent(ctx context.Context, id string, at time.Time) error
	CountAll(ctx context.Context) (int64, error)
}
