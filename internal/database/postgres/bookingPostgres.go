package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rosehq/screening-backend/internal/entity"
)

const bookingColumns = `
	id, participant_id, event_id, booking_reference, booking_status,
	time_slot_start, time_slot_end, booked_at, cancelled_at
`

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// Create performs the whole slot allocation in one transaction so that the
// capacity decrement and the booking insert commit or roll back together.
// The event row is locked first, which linearizes concurrent requests
// against the same event.
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the event row for the duration of the allocation
	var (
		slots     entity.TimeSlotList
		total     int
		available int
	)
	query := `SELECT time_slots, total_slots, available_slots FROM events WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, booking.EventID).Scan(&slots, &total, &available)
	if err == sql.ErrNoRows {
		return entity.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock event: %w", err)
	}

	// One active booking per (participant, event)
	var existing int
	query = `SELECT COUNT(*) FROM bookings WHERE event_id = $1 AND participant_id = $2 AND booking_status != 'cancelled'`
	err = tx.QueryRowContext(ctx, query, booking.EventID, booking.ParticipantID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing bookings: %w", err)
	}
	if existing > 0 {
		return entity.ErrAlreadyBooked
	}

	if len(slots) > 0 {
		// Slotted event: a slot selection is mandatory and the whole slot
		// list is rewritten as a unit after the decrement.
		if booking.TimeSlotStart == nil || booking.TimeSlotEnd == nil {
			return entity.ErrSlotRequired
		}
		slot := slots.Find(*booking.TimeSlotStart, *booking.TimeSlotEnd)
		if slot == nil {
			return entity.ErrSlotNotFound
		}
		if !slot.HasCapacity() {
			return entity.ErrSlotFull
		}
		if err := slot.Reserve(); err != nil {
			return err
		}

		query = `UPDATE events SET time_slots = $1, updated_at = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, query, slots, time.Now(), booking.EventID); err != nil {
			return fmt.Errorf("failed to update event slots: %w", err)
		}
	} else {
		if available <= 0 {
			return entity.ErrEventFull
		}

		query = `UPDATE events SET available_slots = available_slots - 1, updated_at = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, query, time.Now(), booking.EventID); err != nil {
			return fmt.Errorf("failed to decrement event capacity: %w", err)
		}
	}

	now := time.Now()
	query = `
		INSERT INTO bookings (
			id, participant_id, event_id, booking_reference, booking_status,
			time_slot_start, time_slot_end, booked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.ParticipantID,
		booking.EventID,
		booking.BookingReference,
		booking.Status,
		booking.TimeSlotStart,
		booking.TimeSlotEnd,
		now,
	)
	if err != nil {
		if code, constraint := pqConstraint(err); code == "23505" {
			switch constraint {
			case "bookings_booking_reference_key":
				return entity.ErrReferenceTaken
			case "unique_participant_event":
				return entity.ErrAlreadyBooked
			}
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.BookedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Cancel flips the booking to cancelled and releases the held capacity in
// the same transaction. A repeated cancellation is rejected, never
// double-released.
func (r *bookingRepository) Cancel(ctx context.Context, id string) (*entity.Booking, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var booking entity.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.ParticipantID,
		&booking.EventID,
		&booking.BookingReference,
		&booking.Status,
		&booking.TimeSlotStart,
		&booking.TimeSlotEnd,
		&booking.BookedAt,
		&booking.CancelledAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.Status == entity.BookingStatusCancelled {
		return nil, entity.ErrBookingCancelled
	}

	now := time.Now()
	query = `UPDATE bookings SET booking_status = 'cancelled', cancelled_at = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, now, id); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	var (
		slots     entity.TimeSlotList
		total     int
		available int
	)
	query = `SELECT time_slots, total_slots, available_slots FROM events WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, booking.EventID).Scan(&slots, &total, &available)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	if booking.HasSlot() {
		// A slot booking only ever releases its own slot, never the
		// event-level counter.
		slot := slots.Find(*booking.TimeSlotStart, *booking.TimeSlotEnd)
		if slot == nil {
			// Slot layout changed after booking: skip the release rather
			// than failing the cancellation.
			logrus.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"event_id":   booking.EventID,
				"slot":       *booking.TimeSlotStart + "-" + *booking.TimeSlotEnd,
			}).Warn("Booked slot no longer exists, capacity release skipped")
		} else {
			slot.Release()
			query = `UPDATE events SET time_slots = $1, updated_at = $2 WHERE id = $3`
			if _, err := tx.ExecContext(ctx, query, slots, time.Now(), booking.EventID); err != nil {
				return nil, fmt.Errorf("failed to release slot capacity: %w", err)
			}
		}
	} else {
		if available < total {
			query = `UPDATE events SET available_slots = available_slots + 1, updated_at = $1 WHERE id = $2`
			if _, err := tx.ExecContext(ctx, query, time.Now(), booking.EventID); err != nil {
				return nil, fmt.Errorf("failed to release event capacity: %w", err)
			}
		}
	}

	booking.Status = entity.BookingStatusCancelled
	booking.CancelledAt = &now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking entity.Booking
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.ParticipantID,
		&booking.EventID,
		&booking.BookingReference,
		&booking.Status,
		&booking.TimeSlotStart,
		&booking.TimeSlotEnd,
		&booking.BookedAt,
		&booking.CancelledAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) GetByParticipant(ctx context.Context, participantID string) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE participant_id = $1 ORDER BY booked_at DESC`
	return r.queryBookings(ctx, query, participantID)
}

func (r *bookingRepository) GetByEvent(ctx context.Context, eventID string) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = $1 ORDER BY booked_at DESC`
	return r.queryBookings(ctx, query, eventID)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		var booking entity.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.ParticipantID,
			&booking.EventID,
			&booking.BookingReference,
			&booking.Status,
			&booking.TimeSlotStart,
			&booking.TimeSlotEnd,
			&booking.BookedAt,
			&booking.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

func (r *bookingRepository) GetParticipantsByEvent(ctx context.Context, eventID string) ([]*entity.EventParticipant, error) {
	query := `
		SELECT
			b.id, b.booking_reference, b.booking_status, b.booked_at,
			p.name, p.phone_number, p.mykad_id
		FROM bookings b
		JOIN participants p ON b.participant_id = p.id
		WHERE b.event_id = $1
		ORDER BY b.booked_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event participants: %w", err)
	}
	defer rows.Close()

	var participants []*entity.EventParticipant
	for rows.Next() {
		var p entity.EventParticipant
		err := rows.Scan(
			&p.BookingID,
			&p.BookingReference,
			&p.BookingStatus,
			&p.BookedAt,
			&p.Name,
			&p.PhoneNumber,
			&p.MykadID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event participant: %w", err)
		}
		participants = append(participants, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event participants: %w", err)
	}

	return participants, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id string, status entity.BookingStatus) error {
	query := `UPDATE bookings SET booking_status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrBookingNotFound
	}

	return nil
}

func (r *bookingRepository) CountDistinctParticipants(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(DISTINCT participant_id) FROM bookings`
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct participants: %w", err)
	}
	return count, nil
}

func (r *bookingRepository) CountBookedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE booked_at >= $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent bookings: %w", err)
	}
	return count, nil
}

// pqConstraint extracts the postgres error code and constraint name, if any.
func pqConstraint(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}
