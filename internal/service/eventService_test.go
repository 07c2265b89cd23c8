package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosehq/screening-backend/internal/entity"
)

type eventFixture struct {
	store   *fakeStore
	service EventService
}

func newEventFixture() *eventFixture {
	store := newFakeStore()
	svc := NewEventService(
		&fakeEventRepo{store},
		&fakeBookingRepo{store},
		&fakeResultRepo{store},
	)
	return &eventFixture{store: store, service: svc}
}

func TestCreateEvent(t *testing.T) {
	f := newEventFixture()

	event, err := f.service.CreateEvent(context.Background(), &CreateEventRequest{
		Name:       "Community Health Screening",
		EventDate:  "2026-10-15",
		EventTime:  "09:00",
		Address:    "Dewan Komuniti",
		TotalSlots: 50,
		TimeSlots: entity.TimeSlotList{
			{Start: "09:00", End: "10:00", Total: 25},
			{Start: "10:00", End: "11:00", Total: 25},
		},
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, entity.EventStatusDraft, event.Status)
	assert.Equal(t, 50, event.AvailableSlots)

	// Every slot starts fully available
	for _, slot := range event.TimeSlots {
		assert.Equal(t, slot.Total, slot.Available)
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	f := newEventFixture()

	tests := []struct {
		name string
		req  *CreateEventRequest
	}{
		{
			name: "bad date format",
			req: &CreateEventRequest{
				Name:       "Screening",
				EventDate:  "15/10/2026",
				EventTime:  "09:00",
				Address:    "Dewan",
				TotalSlots: 50,
			},
		},
		{
			name: "bad slot bounds",
			req: &CreateEventRequest{
				Name:       "Screening",
				EventDate:  "2026-10-15",
				EventTime:  "09:00",
				Address:    "Dewan",
				TotalSlots: 50,
				TimeSlots: entity.TimeSlotList{
					{Start: "10:00", End: "09:00", Total: 25},
				},
			},
		},
		{
			name: "duplicate slots",
			req: &CreateEventRequest{
				Name:       "Screening",
				EventDate:  "2026-10-15",
				EventTime:  "09:00",
				Address:    "Dewan",
				TotalSlots: 50,
				TimeSlots: entity.TimeSlotList{
					{Start: "09:00", End: "10:00", Total: 25},
					{Start: "09:00", End: "10:00", Total: 25},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateEvent(context.Background(), tt.req)
			assert.ErrorIs(t, err, entity.ErrInvalidInput)
		})
	}
}

func TestUpdateEvent_CapacityGuard(t *testing.T) {
	f := newEventFixture()

	event := &entity.Event{
		ID:             uuid.NewString(),
		Name:           "Screening",
		EventDate:      time.Now().AddDate(0, 0, 7),
		TotalSlots:     10,
		AvailableSlots: 4, // 6 booked
		Status:         entity.EventStatusPublished,
	}
	f.store.events[event.ID] = event

	t.Run("cannot shrink below booked", func(t *testing.T) {
		five := 5
		_, err := f.service.UpdateEvent(context.Background(), event.ID, &UpdateEventRequest{
			TotalSlots: &five,
		})
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})

	t.Run("growing keeps booked count", func(t *testing.T) {
		twenty := 20
		updated, err := f.service.UpdateEvent(context.Background(), event.ID, &UpdateEventRequest{
			TotalSlots: &twenty,
		})
		require.NoError(t, err)
		assert.Equal(t, 20, updated.TotalSlots)
		assert.Equal(t, 14, updated.AvailableSlots)
	})
}

func TestUpdateEvent_ConcurrentWithBookings(t *testing.T) {
	store := newFakeStore()
	events := NewEventService(&fakeEventRepo{store}, &fakeBookingRepo{store}, &fakeResultRepo{store})
	bookings := NewBookingService(
		&fakeBookingRepo{store},
		&fakeEventRepo{store},
		&fakeParticipantRepo{store},
		&fakePublisher{},
		"ROSE",
	)

	event := &entity.Event{
		ID:             uuid.NewString(),
		Name:           "Screening",
		EventDate:      time.Now().AddDate(0, 0, 7),
		TotalSlots:     50,
		AvailableSlots: 50,
		Status:         entity.EventStatusPublished,
	}
	store.events[event.ID] = event

	const n = 20
	participantIDs := make([]string, n)
	for i := range participantIDs {
		p := &entity.Participant{ID: uuid.NewString(), Name: "P", PhoneNumber: "+60123456789"}
		store.participants[p.ID] = p
		participantIDs[i] = p.ID
	}

	var wg sync.WaitGroup
	bookingErrs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, bookingErrs[i] = bookings.CreateBooking(context.Background(), &CreateBookingRequest{
				ParticipantID: participantIDs[i],
				EventID:       event.ID,
			})
		}(i)
		go func() {
			defer wg.Done()
			info := "bring your appointment card"
			_, _ = events.UpdateEvent(context.Background(), event.ID, &UpdateEventRequest{
				AdditionalInfo: &info,
			})
		}()
	}
	wg.Wait()

	for _, err := range bookingErrs {
		require.NoError(t, err)
	}

	// Edits must never resurrect capacity consumed by concurrent bookings
	assert.Equal(t, 30, store.events[event.ID].AvailableSlots)
	assert.Equal(t, "bring your appointment card", store.events[event.ID].AdditionalInfo)
}

func TestDeleteEvent_WithActiveBookings(t *testing.T) {
	f := newEventFixture()

	event := &entity.Event{
		ID:             uuid.NewString(),
		TotalSlots:     10,
		AvailableSlots: 9,
		Status:         entity.EventStatusPublished,
	}
	f.store.events[event.ID] = event
	f.store.bookings[uuid.NewString()] = &entity.Booking{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		ParticipantID: uuid.NewString(),
		Status:        entity.BookingStatusConfirmed,
	}

	err := f.service.DeleteEvent(context.Background(), event.ID)
	assert.ErrorIs(t, err, entity.ErrEventHasBookings)
}

func TestExportParticipantsCSV(t *testing.T) {
	f := newEventFixture()

	event := &entity.Event{
		ID:             uuid.NewString(),
		TotalSlots:     10,
		AvailableSlots: 10,
		Status:         entity.EventStatusPublished,
	}
	f.store.events[event.ID] = event

	data, err := f.service.ExportParticipantsCSV(context.Background(), event.ID)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "name,phone_number,mykad_id,booking_reference,status,booked_at", lines[0])
}

func TestGetDashboardStats(t *testing.T) {
	f := newEventFixture()

	for i := 0; i < 3; i++ {
		f.store.bookings[uuid.NewString()] = &entity.Booking{
			ID:            uuid.NewString(),
			ParticipantID: uuid.NewString(),
			BookedAt:      time.Now(),
			Status:        entity.BookingStatusConfirmed,
		}
	}
	f.store.results[uuid.NewString()] = &entity.TestResult{ID: uuid.NewString()}

	stats, err := f.service.GetDashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalParticipants)
	assert.Equal(t, int64(1), stats.TestsCompleted)
	assert.Equal(t, int64(3), stats.BookingsThisMonth)
}
