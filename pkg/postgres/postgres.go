package postgres

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rosehq/screening-backend/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone_number VARCHAR(20) UNIQUE NOT NULL,
			mykad_id VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			event_date DATE NOT NULL,
			event_time VARCHAR(5) NOT NULL,
			address TEXT NOT NULL,
			time_slots JSONB,
			total_slots INTEGER NOT NULL,
			available_slots INTEGER NOT NULL,
			additional_info TEXT NOT NULL DEFAULT '',
			status VARCHAR(50) NOT NULL DEFAULT 'published',
			created_by VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT capacity_bounds CHECK (available_slots >= 0 AND available_slots <= total_slots)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			participant_id UUID NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			booking_reference VARCHAR(20) UNIQUE NOT NULL,
			booking_status VARCHAR(50) NOT NULL DEFAULT 'confirmed',
			time_slot_start VARCHAR(5),
			time_slot_end VARCHAR(5),
			booked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			cancelled_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS test_results (
			id UUID PRIMARY KEY,
			booking_id UUID UNIQUE NOT NULL REFERENCES bookings(id),
			result_category VARCHAR(100) NOT NULL,
			result_notes TEXT NOT NULL DEFAULT '',
			result_file_key VARCHAR(255) NOT NULL DEFAULT '',
			result_file_url TEXT NOT NULL DEFAULT '',
			uploaded_by VARCHAR(64) NOT NULL,
			uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			sms_sent BOOLEAN NOT NULL DEFAULT false,
			sms_sent_at TIMESTAMP
		)`,

		// One active booking per (participant, event)
		`CREATE UNIQUE INDEX IF NOT EXISTS unique_participant_event
			ON bookings(participant_id, event_id)
			WHERE booking_status != 'cancelled'`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_id ON bookings(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_participant_id ON bookings(participant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(booking_status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
