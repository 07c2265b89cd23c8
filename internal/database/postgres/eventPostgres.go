package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rosehq/screening-backend/internal/entity"
)

const eventColumns = `
	id, name, event_date, event_time, address, time_slots, total_slots,
	available_slots, additional_info, status, created_by, created_at, updated_at
`

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (
			id, name, event_date, event_time, address, time_slots, total_slots,
			available_slots, additional_info, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Name,
		event.EventDate,
		event.EventTime,
		event.Address,
		event.TimeSlots,
		event.TotalSlots,
		event.AvailableSlots,
		event.AdditionalInfo,
		event.Status,
		event.CreatedBy,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var event entity.Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.EventDate,
		&event.EventTime,
		&event.Address,
		&event.TimeSlots,
		&event.TotalSlots,
		&event.AvailableSlots,
		&event.AdditionalInfo,
		&event.Status,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) GetAll(ctx context.Context, publishedOnly bool) ([]*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	if publishedOnly {
		query += ` WHERE status = 'published'`
	}
	query += ` ORDER BY event_date`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		var event entity.Event
		err := rows.Scan(
			&event.ID,
			&event.Name,
			&event.EventDate,
			&event.EventTime,
			&event.Address,
			&event.TimeSlots,
			&event.TotalSlots,
			&event.AvailableSlots,
			&event.AdditionalInfo,
			&event.Status,
			&event.CreatedBy,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Update re-reads the event under FOR UPDATE, applies mutate and writes
// the result back in the same transaction. The lock is the same one the
// booking allocation takes, so a concurrent decrement is never lost.
func (r *eventRepository) Update(ctx context.Context, id string, mutate func(event *entity.Event) error) (*entity.Event, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var event entity.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.EventDate,
		&event.EventTime,
		&event.Address,
		&event.TimeSlots,
		&event.TotalSlots,
		&event.AvailableSlots,
		&event.AdditionalInfo,
		&event.Status,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	if err := mutate(&event); err != nil {
		return nil, err
	}
	event.UpdatedAt = time.Now()

	query = `
		UPDATE events
		SET name = $1, event_date = $2, event_time = $3, address = $4,
		    time_slots = $5, total_slots = $6, available_slots = $7,
		    additional_info = $8, status = $9, updated_at = $10
		WHERE id = $11
	`
	_, err = tx.ExecContext(ctx, query,
		event.Name,
		event.EventDate,
		event.EventTime,
		event.Address,
		event.TimeSlots,
		event.TotalSlots,
		event.AvailableSlots,
		event.AdditionalInfo,
		event.Status,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	// Events with active bookings cannot be deleted
	var active int
	query := `SELECT COUNT(*) FROM bookings WHERE event_id = $1 AND booking_status != 'cancelled'`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&active); err != nil {
		return fmt.Errorf("failed to check event bookings: %w", err)
	}
	if active > 0 {
		return entity.ErrEventHasBookings
	}

	query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) CountActive(ctx context.Context, from time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM events WHERE status = 'published' AND event_date >= $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, from).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active events: %w", err)
	}
	return count, nil
}

func (r *eventRepository) GetBookingStats(ctx context.Context, eventID string) (*entity.EventBookingStats, error) {
	query := `
		SELECT
			COUNT(*) as total_bookings,
			COUNT(*) FILTER (WHERE booking_status = 'confirmed') as confirmed_count,
			COUNT(*) FILTER (WHERE booking_status = 'cancelled') as cancelled_count,
			COUNT(*) FILTER (WHERE booking_status = 'checked_in') as checked_in_count
		FROM bookings
		WHERE event_id = $1
	`

	var stats entity.EventBookingStats
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&stats.TotalBookings,
		&stats.ConfirmedCount,
		&stats.CancelledCount,
		&stats.CheckedInCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get event booking stats: %w", err)
	}

	return &stats, nil
}
