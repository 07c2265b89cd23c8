package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/rosehq/screening-backend/internal/database/postgres"
	"github.com/rosehq/screening-backend/internal/entity"
	"github.com/rosehq/screening-backend/pkg/queue"
	"github.com/rosehq/screening-backend/pkg/reference"
)

// CreateBookingRequest carries a booking request. ParticipantID is set
// from the authenticated identity, never from the request body.
type CreateBookingRequest struct {
	ParticipantID string  `json:"-"`
	EventID       string  `json:"event_id" binding:"required,uuid"`
	TimeSlotStart *string `json:"time_slot_start,omitempty"`
	TimeSlotEnd   *string `json:"time_slot_end,omitempty"`
}

// maxReferenceRetries bounds the regenerate-and-retry loop on booking
// reference collisions.
const maxReferenceRetries = 5

type bookingService struct {
	bookingRepo     repository.BookingRepository
	eventRepo       repository.EventRepository
	participantRepo repository.ParticipantRepository
	queue           TaskPublisher
	referencePrefix string
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	eventRepo repository.EventRepository,
	participantRepo repository.ParticipantRepository,
	queue TaskPublisher,
	referencePrefix string,
) BookingService {
	return &bookingService{
		bookingRepo:     bookingRepo,
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		queue:           queue,
		referencePrefix: referencePrefix,
	}
}

// CreateBooking books a screening appointment. The capacity check and
// decrement happen atomically inside the repository transaction; this
// layer does friendly pre-checks, generates the reference, retries on
// reference collisions and dispatches the confirmation SMS after commit.
func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*entity.Booking, error) {
	participant, err := s.participantRepo.GetByID(ctx, req.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	// Draft events are invisible to participants.
	if event.Status != entity.EventStatusPublished {
		return nil, entity.ErrEventNotFound
	}

	if event.Slotted() && (req.TimeSlotStart == nil || req.TimeSlotEnd == nil) {
		return nil, entity.ErrSlotRequired
	}

	booking := &entity.Booking{
		ID:            uuid.NewString(),
		ParticipantID: req.ParticipantID,
		EventID:       req.EventID,
		Status:        entity.BookingStatusConfirmed,
		TimeSlotStart: req.TimeSlotStart,
		TimeSlotEnd:   req.TimeSlotEnd,
		BookedAt:      time.Now(),
	}

	for attempt := 0; ; attempt++ {
		booking.BookingReference = reference.New(s.referencePrefix)

		err = s.bookingRepo.Create(ctx, booking)
		if err == nil {
			break
		}
		if errors.Is(err, entity.ErrReferenceTaken) && attempt < maxReferenceRetries-1 {
			logrus.WithField("reference", booking.BookingReference).
				Warn("Booking reference collision, regenerating")
			continue
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"event_id":   booking.EventID,
		"reference":  booking.BookingReference,
	}).Info("Booking created")

	s.publishBookingSMS(ctx, string(queue.TaskTypeBookingConfirmation), booking, event, participant)

	return booking, nil
}

// CancelBooking cancels a booking and releases its capacity. Repeat
// cancellation is a conflict, not a no-op.
func (s *bookingService) CancelBooking(ctx context.Context, bookingID, participantID string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if participantID != "" && booking.ParticipantID != participantID {
		return nil, entity.ErrForbidden
	}

	cancelled, err := s.bookingRepo.Cancel(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": cancelled.ID,
		"reference":  cancelled.BookingReference,
	}).Info("Booking cancelled")

	event, eventErr := s.eventRepo.GetByID(ctx, cancelled.EventID)
	participant, partErr := s.participantRepo.GetByID(ctx, cancelled.ParticipantID)
	if eventErr == nil && partErr == nil {
		s.publishBookingSMS(ctx, string(queue.TaskTypeBookingCancellation), cancelled, event, participant)
	}

	return cancelled, nil
}

// CheckIn marks a confirmed booking as checked in. Capacity is not
// affected; the participant is simply present.
func (s *bookingService) CheckIn(ctx context.Context, bookingID string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.Status != entity.BookingStatusConfirmed {
		if booking.Status == entity.BookingStatusCancelled {
			return nil, entity.ErrBookingCancelled
		}
		return nil, entity.ErrNotConfirmed
	}

	if err := s.bookingRepo.UpdateStatus(ctx, bookingID, entity.BookingStatusCheckedIn); err != nil {
		return nil, fmt.Errorf("failed to check in booking: %w", err)
	}

	booking.Status = entity.BookingStatusCheckedIn
	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*entity.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (s *bookingService) GetParticipantBookings(ctx context.Context, participantID string) ([]*entity.Booking, error) {
	bookings, err := s.bookingRepo.GetByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant bookings: %w", err)
	}
	return bookings, nil
}

func (s *bookingService) GetEventBookings(ctx context.Context, eventID string) ([]*entity.Booking, error) {
	bookings, err := s.bookingRepo.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event bookings: %w", err)
	}
	return bookings, nil
}

// publishBookingSMS queues a booking notification. Failures are logged
// and swallowed; the booking itself is already committed.
func (s *bookingService) publishBookingSMS(ctx context.Context, taskType string, booking *entity.Booking, event *entity.Event, participant *entity.Participant) {
	if s.queue == nil {
		return
	}

	data := map[string]interface{}{
		"phone":      participant.PhoneNumber,
		"name":       participant.Name,
		"reference":  booking.BookingReference,
		"event_name": event.Name,
		"event_date": event.EventDate.Format("2006-01-02"),
		"address":    event.Address,
	}
	if booking.HasSlot() {
		data["time_slot"] = fmt.Sprintf("%s-%s", *booking.TimeSlotStart, *booking.TimeSlotEnd)
	}

	task := &Task{
		ID:         fmt.Sprintf("%s_%s", taskType, booking.ID),
		Type:       taskType,
		Data:       data,
		MaxRetries: 3,
	}

	if err := s.queue.Publish(ctx, task); err != nil {
		logrus.WithField("booking_id", booking.ID).
			Errorf("Failed to queue %s task: %v", taskType, err)
	}
}
