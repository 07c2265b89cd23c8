package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rosehq/screening-backend/internal/entity"
)

const resultColumns = `
	id, booking_id, result_category, result_notes, result_file_key,
	result_file_url, uploaded_by, uploaded_at, sms_sent, sms_sent_at
`

type resultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Create(ctx context.Context, result *entity.TestResult) error {
	query := `
		INSERT INTO test_results (
			id, booking_id, result_category, result_notes, result_file_key,
			result_file_url, uploaded_by, uploaded_at, sms_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		result.ID,
		result.BookingID,
		result.ResultCategory,
		result.ResultNotes,
		result.ResultFileKey,
		result.ResultFileURL,
		result.UploadedBy,
		now,
		false,
	)
	if err != nil {
		if code, _ := pqConstraint(err); code == "23505" {
			return entity.ErrResultExists
		}
		return fmt.Errorf("failed to create result: %w", err)
	}

	result.UploadedAt = now
	return nil
}

func (r *resultRepository) GetByID(ctx context.Context, id string) (*entity.TestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM test_results WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *resultRepository) GetByBookingID(ctx context.Context, bookingID string) (*entity.TestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM test_results WHERE booking_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, bookingID))
}

func (r *resultRepository) scanOne(row *sql.Row) (*entity.TestResult, error) {
	var result entity.TestResult
	err := row.Scan(
		&result.ID,
		&result.BookingID,
		&result.ResultCategory,
		&result.ResultNotes,
		&result.ResultFileKey,
		&result.ResultFileURL,
		&result.UploadedBy,
		&result.UploadedAt,
		&result.SMSSent,
		&result.SMSSentAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return &result, nil
}

func (r *resultRepository) GetAll(ctx context.Context) ([]*entity.TestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM test_results ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []*entity.TestResult
	for rows.Next() {
		var result entity.TestResult
		err := rows.Scan(
			&result.ID,
			&result.BookingID,
			&result.ResultCategory,
			&result.ResultNotes,
			&result.ResultFileKey,
			&result.ResultFileURL,
			&result.UploadedBy,
			&result.UploadedAt,
			&result.SMSSent,
			&result.SMSSentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

func (r *resultRepository) MarkSMSSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE test_results SET sms_sent = true, sms_sent_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark sms sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrResultNotFound
	}

	return nil
}

func (r *resultRepository) CountAll(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM test_results`
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}
