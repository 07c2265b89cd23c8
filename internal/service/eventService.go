package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	repository "github.com/rosehq/screening-backend/internal/database/postgres"
	"github.com/rosehq/screening-backend/internal/entity"
)

const eventDateLayout = "2006-01-02"

// CreateEventRequest represents the data needed to create a screening event
type CreateEventRequest struct {
	Name           string              `json:"name" binding:"required,min=1,max=255"`
	EventDate      string              `json:"event_date" binding:"required"`
	EventTime      string              `json:"event_time" binding:"required"`
	Address        string              `json:"address" binding:"required,max=500"`
	TotalSlots     int                 `json:"total_slots" binding:"required,min=1,max=10000"`
	TimeSlots      entity.TimeSlotList `json:"time_slots,omitempty"`
	AdditionalInfo string              `json:"additional_info" binding:"max=1000"`
	Status         entity.EventStatus  `json:"status" binding:"omitempty,oneof=draft published"`
	CreatedBy      string              `json:"-"`
}

// UpdateEventRequest represents the data needed to update an event
type UpdateEventRequest struct {
	Name           *string              `json:"name,omitempty"`
	EventDate      *string              `json:"event_date,omitempty"`
	EventTime      *string              `json:"event_time,omitempty"`
	Address        *string              `json:"address,omitempty"`
	TotalSlots     *int                 `json:"total_slots,omitempty"`
	TimeSlots      *entity.TimeSlotList `json:"time_slots,omitempty"`
	AdditionalInfo *string              `json:"additional_info,omitempty"`
	Status         *entity.EventStatus  `json:"status,omitempty" binding:"omitempty,oneof=draft published"`
}

// EventStats wraps an event with its booking breakdown.
type EventStats struct {
	Event            *entity.Event             `json:"event"`
	BookingStats     *entity.EventBookingStats `json:"booking_stats"`
	UtilizationRate  float64                   `json:"utilization_rate"`
	CancellationRate float64                   `json:"cancellation_rate"`
}

type eventService struct {
	eventRepo   repository.EventRepository
	bookingRepo repository.BookingRepository
	resultRepo  repository.ResultRepository
}

func NewEventService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	resultRepo repository.ResultRepository,
) EventService {
	return &eventService{
		eventRepo:   eventRepo,
		bookingRepo: bookingRepo,
		resultRepo:  resultRepo,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	eventDate, err := time.Parse(eventDateLayout, req.EventDate)
	if err != nil {
		return nil, fmt.Errorf("event_date must be in %s format: %w", eventDateLayout, entity.ErrInvalidInput)
	}

	// New events start with every slot fully available.
	slots := make(entity.TimeSlotList, len(req.TimeSlots))
	copy(slots, req.TimeSlots)
	for i := range slots {
		slots[i].Available = slots[i].Total
	}
	if err := slots.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, entity.ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = entity.EventStatusDraft
	}

	event := &entity.Event{
		ID:             uuid.NewString(),
		Name:           req.Name,
		EventDate:      eventDate,
		EventTime:      req.EventTime,
		Address:        req.Address,
		TimeSlots:      slots,
		TotalSlots:     req.TotalSlots,
		AvailableSlots: req.TotalSlots,
		AdditionalInfo: req.AdditionalInfo,
		Status:         status,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*entity.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetAllEvents(ctx context.Context, publishedOnly bool) ([]*entity.Event, error) {
	events, err := s.eventRepo.GetAll(ctx, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

// UpdateEvent merges the requested fields inside the repository's locked
// update, so the capacity guard always sees the current booking count.
func (s *eventService) UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*entity.Event, error) {
	event, err := s.eventRepo.Update(ctx, id, func(event *entity.Event) error {
		if req.Name != nil {
			event.Name = *req.Name
		}
		if req.EventDate != nil {
			eventDate, err := time.Parse(eventDateLayout, *req.EventDate)
			if err != nil {
				return fmt.Errorf("event_date must be in %s format: %w", eventDateLayout, entity.ErrInvalidInput)
			}
			event.EventDate = eventDate
		}
		if req.EventTime != nil {
			event.EventTime = *req.EventTime
		}
		if req.Address != nil {
			event.Address = *req.Address
		}
		if req.TotalSlots != nil {
			booked := event.TotalSlots - event.AvailableSlots
			if *req.TotalSlots < booked {
				return fmt.Errorf("cannot reduce total slots below current bookings (%d): %w", booked, entity.ErrInvalidInput)
			}
			event.TotalSlots = *req.TotalSlots
			event.AvailableSlots = *req.TotalSlots - booked
		}
		if req.TimeSlots != nil {
			if err := req.TimeSlots.Validate(); err != nil {
				return fmt.Errorf("%v: %w", err, entity.ErrInvalidInput)
			}
			event.TimeSlots = *req.TimeSlots
		}
		if req.AdditionalInfo != nil {
			event.AdditionalInfo = *req.AdditionalInfo
		}
		if req.Status != nil {
			event.Status = *req.Status
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (s *eventService) GetEventParticipants(ctx context.Context, eventID string) ([]*entity.EventParticipant, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	participants, err := s.bookingRepo.GetParticipantsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event participants: %w", err)
	}
	return participants, nil
}

// ExportParticipantsCSV renders the participant listing as CSV for
// on-site staff.
func (s *eventService) ExportParticipantsCSV(ctx context.Context, eventID string) ([]byte, error) {
	participants, err := s.GetEventParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"name", "phone_number", "mykad_id", "booking_reference", "status", "booked_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, p := range participants {
		row := []string{
			p.Name,
			p.PhoneNumber,
			p.MykadID,
			p.BookingReference,
			string(p.BookingStatus),
			p.BookedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *eventService) GetEventStats(ctx context.Context, eventID string) (*EventStats, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	stats, err := s.eventRepo.GetBookingStats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	return &EventStats{
		Event:            event,
		BookingStats:     stats,
		UtilizationRate:  stats.UtilizationRate(event.TotalSlots),
		CancellationRate: stats.CancellationRate(),
	}, nil
}

func (s *eventService) GetDashboardStats(ctx context.Context) (*entity.DashboardStats, error) {
	now := time.Now()

	activeEvents, err := s.eventRepo.CountActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count active events: %w", err)
	}

	totalParticipants, err := s.bookingRepo.CountDistinctParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	testsCompleted, err := s.resultRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	bookingsThisMonth, err := s.bookingRepo.CountBookedSince(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly bookings: %w", err)
	}

	return &entity.DashboardStats{
		ActiveEvents:      activeEvents,
		TotalParticipants: totalParticipants,
		TestsCompleted:    testsCompleted,
		BookingsThisMonth: bookingsThisMonth,
	}, nil
}
