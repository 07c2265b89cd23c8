package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosehq/screening-backend/internal/entity"
)

// fakeStore emulates the database, with the allocation transaction
// linearized by a mutex the way the event row lock linearizes it in
// postgres.
type fakeStore struct {
	mu           sync.Mutex
	events       map[string]*entity.Event
	bookings     map[string]*entity.Booking
	participants map[string]*entity.Participant
	results      map[string]*entity.TestResult

	// refCollisions makes the next N booking inserts fail as if the
	// generated reference already existed.
	refCollisions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:       make(map[string]*entity.Event),
		bookings:     make(map[string]*entity.Booking),
		participants: make(map[string]*entity.Participant),
		results:      make(map[string]*entity.TestResult),
	}
}

type fakeBookingRepo struct{ store *fakeStore }

func (r *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[booking.EventID]
	if !ok {
		return entity.ErrEventNotFound
	}

	for _, b := range s.bookings {
		if b.EventID == booking.EventID && b.ParticipantID == booking.ParticipantID && b.Active() {
			return entity.ErrAlreadyBooked
		}
	}

	if event.Slotted() {
		if booking.TimeSlotStart == nil || booking.TimeSlotEnd == nil {
			return entity.ErrSlotRequired
		}
		slot := event.TimeSlots.Find(*booking.TimeSlotStart, *booking.TimeSlotEnd)
		if slot == nil {
			return entity.ErrSlotNotFound
		}
		if !slot.HasCapacity() {
			return entity.ErrSlotFull
		}
		if err := slot.Reserve(); err != nil {
			return err
		}
	} else {
		if event.AvailableSlots <= 0 {
			return entity.ErrEventFull
		}
		event.AvailableSlots--
	}

	if s.refCollisions > 0 {
		s.refCollisions--
		// The insert failed, so the capacity decrement rolls back too.
		if event.Slotted() {
			event.TimeSlots.Find(*booking.TimeSlotStart, *booking.TimeSlotEnd).Release()
		} else {
			event.AvailableSlots++
		}
		return entity.ErrReferenceTaken
	}

	copied := *booking
	s.bookings[booking.ID] = &copied
	return nil
}

func (r *fakeBookingRepo) Cancel(ctx context.Context, id string) (*entity.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	if booking.Status == entity.BookingStatusCancelled {
		return nil, entity.ErrBookingCancelled
	}

	now := time.Now()
	booking.Status = entity.BookingStatusCancelled
	booking.CancelledAt = &now

	event := s.events[booking.EventID]
	if booking.HasSlot() {
		// Release only the booked slot; skip when the layout changed and
		// the slot is gone.
		if slot := event.TimeSlots.Find(*booking.TimeSlotStart, *booking.TimeSlotEnd); slot != nil {
			slot.Release()
		}
	} else if event.AvailableSlots < event.TotalSlots {
		event.AvailableSlots++
	}

	copied := *booking
	return &copied, nil
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	copied := *booking
	return &copied, nil
}

func (r *fakeBookingRepo) GetByParticipant(ctx context.Context, participantID string) ([]*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.store.bookings {
		if b.ParticipantID == participantID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) GetByEvent(ctx context.Context, eventID string) ([]*entity.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.store.bookings {
		if b.EventID == eventID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) GetParticipantsByEvent(ctx context.Context, eventID string) ([]*entity.EventParticipant, error) {
	return nil, nil
}

func (r *fakeBookingRepo) UpdateStatus(ctx context.Context, id string, status entity.BookingStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	booking, ok := r.store.bookings[id]
	if !ok {
		return entity.ErrBookingNotFound
	}
	booking.Status = status
	return nil
}

func (r *fakeBookingRepo) CountDistinctParticipants(ctx context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	seen := make(map[string]struct{})
	for _, b := range r.store.bookings {
		seen[b.ParticipantID] = struct{}{}
	}
	return int64(len(seen)), nil
}

func (r *fakeBookingRepo) CountBookedSince(ctx context.Context, since time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, b := range r.store.bookings {
		if !b.BookedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeEventRepo struct{ store *fakeStore }

func (r *fakeEventRepo) Create(ctx context.Context, event *entity.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *event
	r.store.events[event.ID] = &copied
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event, ok := r.store.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	copied := *event
	copied.TimeSlots = append(entity.TimeSlotList(nil), event.TimeSlots...)
	return &copied, nil
}

func (r *fakeEventRepo) GetAll(ctx context.Context, publishedOnly bool) ([]*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Event
	for _, e := range r.store.events {
		if publishedOnly && e.Status != entity.EventStatusPublished {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

// Update holds the store lock across the whole read-mutate-write, the
// way the row lock does in postgres.
func (r *fakeEventRepo) Update(ctx context.Context, id string, mutate func(event *entity.Event) error) (*entity.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event, ok := r.store.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	copied := *event
	copied.TimeSlots = append(entity.TimeSlotList(nil), event.TimeSlots...)
	if err := mutate(&copied); err != nil {
		return nil, err
	}
	copied.UpdatedAt = time.Now()
	r.store.events[id] = &copied
	out := copied
	return &out, nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, b := range r.store.bookings {
		if b.EventID == id && b.Active() {
			return entity.ErrEventHasBookings
		}
	}
	delete(r.store.events, id)
	return nil
}

func (r *fakeEventRepo) CountActive(ctx context.Context, from time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeEventRepo) GetBookingStats(ctx context.Context, eventID string) (*entity.EventBookingStats, error) {
	return &entity.EventBookingStats{}, nil
}

type fakeParticipantRepo struct{ store *fakeStore }

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id string) (*entity.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.participants[id]
	if !ok {
		return nil, entity.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipantRepo) GetByPhone(ctx context.Context, phone string) (*entity.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.participants {
		if p.PhoneNumber == phone {
			copied := *p
			return &copied, nil
		}
	}
	return nil, entity.ErrParticipantNotFound
}

// fakePublisher records published tasks.
type fakePublisher struct {
	mu    sync.Mutex
	tasks []*Task
}

func (p *fakePublisher) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *fakePublisher) published() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Task(nil), p.tasks...)
}

type bookingFixture struct {
	store     *fakeStore
	service   BookingService
	publisher *fakePublisher
}

func newBookingFixture() *bookingFixture {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := NewBookingService(
		&fakeBookingRepo{store},
		&fakeEventRepo{store},
		&fakeParticipantRepo{store},
		publisher,
		"ROSE",
	)
	return &bookingFixture{store: store, service: svc, publisher: publisher}
}

func (f *bookingFixture) addParticipant(name string) *entity.Participant {
	p := &entity.Participant{
		ID:          uuid.NewString(),
		Name:        name,
		PhoneNumber: "+60123456789",
		MykadID:     "900101-10-1234",
	}
	f.store.participants[p.ID] = p
	return p
}

func (f *bookingFixture) addEvent(total int, slots entity.TimeSlotList) *entity.Event {
	e := &entity.Event{
		ID:             uuid.NewString(),
		Name:           "Community Health Screening",
		EventDate:      time.Now().AddDate(0, 0, 7),
		EventTime:      "09:00",
		Address:        "Dewan Komuniti",
		TimeSlots:      slots,
		TotalSlots:     total,
		AvailableSlots: total,
		Status:         entity.EventStatusPublished,
	}
	f.store.events[e.ID] = e
	return e
}

func strPtr(s string) *string { return &s }

func TestCreateBooking_Unslotted(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)
	assert.Regexp(t, regexp.MustCompile(`^ROSE-[A-Z0-9]{6}$`), booking.BookingReference)
	assert.Equal(t, 4, f.store.events[event.ID].AvailableSlots)

	tasks := f.publisher.published()
	require.Len(t, tasks, 1)
	assert.Equal(t, "sms_booking_confirmation", tasks[0].Type)
	assert.Equal(t, booking.BookingReference, tasks[0].Data["reference"])
}

func TestCreateBooking_DuplicateRejected(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	_, err = f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	assert.ErrorIs(t, err, entity.ErrAlreadyBooked)
	assert.Equal(t, 4, f.store.events[event.ID].AvailableSlots)
}

func TestCreateBooking_EventFull(t *testing.T) {
	f := newBookingFixture()
	event := f.addEvent(1, nil)

	first := f.addParticipant("Aminah")
	_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: first.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	second := f.addParticipant("Badrul")
	_, err = f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: second.ID,
		EventID:       event.ID,
	})
	assert.ErrorIs(t, err, entity.ErrEventFull)
}

func TestCreateBooking_DraftEventHidden(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)
	f.store.events[event.ID].Status = entity.EventStatusDraft

	_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

func TestCreateBooking_Slotted(t *testing.T) {
	f := newBookingFixture()
	slots := entity.TimeSlotList{
		{Start: "09:00", End: "10:00", Total: 2, Available: 2},
		{Start: "10:00", End: "11:00", Total: 3, Available: 3},
	}
	event := f.addEvent(5, slots)

	t.Run("missing bounds rejected", func(t *testing.T) {
		p := f.addParticipant("Aminah")
		_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
			ParticipantID: p.ID,
			EventID:       event.ID,
		})
		assert.ErrorIs(t, err, entity.ErrSlotRequired)
	})

	t.Run("unknown slot rejected", func(t *testing.T) {
		p := f.addParticipant("Badrul")
		_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
			ParticipantID: p.ID,
			EventID:       event.ID,
			TimeSlotStart: strPtr("12:00"),
			TimeSlotEnd:   strPtr("13:00"),
		})
		assert.ErrorIs(t, err, entity.ErrSlotNotFound)
	})

	t.Run("slot drains to conflict", func(t *testing.T) {
		for _, name := range []string{"Chong", "Devi"} {
			p := f.addParticipant(name)
			_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
				ParticipantID: p.ID,
				EventID:       event.ID,
				TimeSlotStart: strPtr("09:00"),
				TimeSlotEnd:   strPtr("10:00"),
			})
			require.NoError(t, err)
		}
		assert.Equal(t, 0, f.store.events[event.ID].TimeSlots.Find("09:00", "10:00").Available)

		p := f.addParticipant("Eng")
		_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
			ParticipantID: p.ID,
			EventID:       event.ID,
			TimeSlotStart: strPtr("09:00"),
			TimeSlotEnd:   strPtr("10:00"),
		})
		assert.ErrorIs(t, err, entity.ErrSlotFull)

		// The other slot is untouched
		assert.Equal(t, 3, f.store.events[event.ID].TimeSlots.Find("10:00", "11:00").Available)
	})
}

func TestCreateBooking_ReferenceCollisionRetries(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)
	f.store.refCollisions = 2

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ROSE-[A-Z0-9]{6}$`), booking.BookingReference)
	assert.Equal(t, 4, f.store.events[event.ID].AvailableSlots)
}

func TestCreateBooking_ReferenceCollisionExhausted(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)
	f.store.refCollisions = maxReferenceRetries

	_, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	assert.ErrorIs(t, err, entity.ErrReferenceTaken)
}

func TestCancelBooking_RestoresCapacity(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 4, f.store.events[event.ID].AvailableSlots)

	cancelled, err := f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, f.store.events[event.ID].AvailableSlots)

	// The pair can book again after cancelling
	rebooked, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, rebooked.ID)
}

func TestCancelBooking_SlottedRestoresSlot(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	slots := entity.TimeSlotList{
		{Start: "09:00", End: "10:00", Total: 2, Available: 2},
		{Start: "10:00", End: "11:00", Total: 3, Available: 3},
	}
	event := f.addEvent(5, slots)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
		TimeSlotStart: strPtr("09:00"),
		TimeSlotEnd:   strPtr("10:00"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.store.events[event.ID].TimeSlots.Find("09:00", "10:00").Available)

	cancelled, err := f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, 2, f.store.events[event.ID].TimeSlots.Find("09:00", "10:00").Available)

	// The other slot is untouched
	assert.Equal(t, 3, f.store.events[event.ID].TimeSlots.Find("10:00", "11:00").Available)

	// The freed slot can be booked again
	rebooked, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
		TimeSlotStart: strPtr("09:00"),
		TimeSlotEnd:   strPtr("10:00"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, rebooked.ID)
	assert.Equal(t, 1, f.store.events[event.ID].TimeSlots.Find("09:00", "10:00").Available)
}

func TestCancelBooking_VanishedSlotSkipsRelease(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	slots := entity.TimeSlotList{
		{Start: "09:00", End: "10:00", Total: 2, Available: 2},
		{Start: "10:00", End: "11:00", Total: 3, Available: 3},
	}
	event := f.addEvent(5, slots)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
		TimeSlotStart: strPtr("09:00"),
		TimeSlotEnd:   strPtr("10:00"),
	})
	require.NoError(t, err)

	// The layout is replaced and the booked slot disappears
	f.store.events[event.ID].TimeSlots = entity.TimeSlotList{
		{Start: "10:00", End: "11:00", Total: 3, Available: 3},
	}

	cancelled, err := f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)

	// No counter changes when the booked slot is gone
	assert.Nil(t, f.store.events[event.ID].TimeSlots.Find("09:00", "10:00"))
	assert.Equal(t, 3, f.store.events[event.ID].TimeSlots.Find("10:00", "11:00").Available)
	assert.Equal(t, 5, f.store.events[event.ID].AvailableSlots)
}

func TestCancelBooking_DoubleCancelConflict(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	assert.ErrorIs(t, err, entity.ErrBookingCancelled)

	// Capacity released exactly once
	assert.Equal(t, 5, f.store.events[event.ID].AvailableSlots)
}

func TestCancelBooking_WrongParticipantForbidden(t *testing.T) {
	f := newBookingFixture()
	owner := f.addParticipant("Aminah")
	other := f.addParticipant("Badrul")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: owner.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), booking.ID, other.ID)
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestCreateBooking_ConcurrentLastSlot(t *testing.T) {
	f := newBookingFixture()
	event := f.addEvent(1, nil)
	first := f.addParticipant("Aminah")
	second := f.addParticipant("Badrul")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*entity.Participant{first, second} {
		wg.Add(1)
		go func(i int, participantID string) {
			defer wg.Done()
			_, errs[i] = f.service.CreateBooking(context.Background(), &CreateBookingRequest{
				ParticipantID: participantID,
				EventID:       event.ID,
			})
		}(i, p.ID)
	}
	wg.Wait()

	var successes, fulls int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, entity.ErrEventFull):
			fulls++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, fulls)
	assert.Equal(t, 0, f.store.events[event.ID].AvailableSlots)
}

func TestCheckIn(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	checked, err := f.service.CheckIn(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCheckedIn, checked.Status)

	// A second check-in is a conflict
	_, err = f.service.CheckIn(context.Background(), booking.ID)
	assert.ErrorIs(t, err, entity.ErrNotConfirmed)
}

func TestCheckIn_CancelledBooking(t *testing.T) {
	f := newBookingFixture()
	participant := f.addParticipant("Aminah")
	event := f.addEvent(5, nil)

	booking, err := f.service.CreateBooking(context.Background(), &CreateBookingRequest{
		ParticipantID: participant.ID,
		EventID:       event.ID,
	})
	require.NoError(t, err)

	_, err = f.service.CancelBooking(context.Background(), booking.ID, participant.ID)
	require.NoError(t, err)

	_, err = f.service.CheckIn(context.Background(), booking.ID)
	assert.ErrorIs(t, err, entity.ErrBookingCancelled)
}
