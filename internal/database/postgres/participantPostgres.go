package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rosehq/screening-backend/internal/entity"
)

type participantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) GetByID(ctx context.Context, id string) (*entity.Participant, error) {
	query := `SELECT id, name, phone_number, mykad_id, created_at FROM participants WHERE id = $1`

	var p entity.Participant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.MykadID,
		&p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &p, nil
}

func (r *participantRepository) GetByPhone(ctx context.Context, phone string) (*entity.Participant, error) {
	query := `SELECT id, name, phone_number, mykad_id, created_at FROM participants WHERE phone_number = $1`

	var p entity.Participant
	err := r.db.QueryRowContext(ctx, query, phone).Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.MykadID,
		&p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by phone: %w", err)
	}

	return &p, nil
}
