package service

import (
	"context"
	"time"

	"github.com/rosehq/screening-backend/internal/entity"
)

type EventService interface {
	// Management operations
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id string) (*entity.Event, error)
	GetAllEvents(ctx context.Context, publishedOnly bool) ([]*entity.Event, error)
	UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*entity.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	// Reporting
	GetEventParticipants(ctx context.Context, eventID string) ([]*entity.EventParticipant, error)
	ExportParticipantsCSV(ctx context.Context, eventID string) ([]byte, error)
	GetEventStats(ctx context.Context, eventID string) (*EventStats, error)
	GetDashboardStats(ctx context.Context) (*entity.DashboardStats, error)
}

type BookingService interface {
	// Core operations
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error)
	CancelBooking(ctx context.Context, bookingID, participantID string) (*entity.Booking, error)
	CheckIn(ctx context.Context, bookingID string) (*entity.Booking, error)

	// Lookups
	GetBooking(ctx context.Context, id string) (*entity.Booking, error)
	GetParticipantBookings(ctx context.Context, participantID string) ([]*entity.Booking, error)
	GetEventBookings(ctx context.Context, eventID string) ([]*entity.Booking, error)
}

type ResultService interface {
	// Staff operations
	UploadResult(ctx context.Context, req *UploadResultRequest) (*entity.TestResult, error)
	SendResultSMS(ctx context.Context, resultID string) error
	GetResult(ctx context.Context, resultID string) (*entity.TestResult, error)
	GetAllResults(ctx context.Context) ([]*entity.TestResult, error)

	// Participant operations, OTP gated
	GetParticipantResults(ctx context.Context, participantID string) ([]*entity.ParticipantResult, error)
	RequestOTP(ctx context.Context, resultID, participantID string) error
	ViewResult(ctx context.Context, resultID, participantID, code string) (*ResultView, error)
}

// TaskPublisher is the slice of the queue the services need. Publishing
// is fire-and-forget: failures are logged, never surfaced to the caller.
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task represents a notification task handed to the queue.
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}
