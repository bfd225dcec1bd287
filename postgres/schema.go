package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func CreateEventsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS events (
		event_id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		venue VARCHAR(255) NOT NULL,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		total_tickets INTEGER NOT NULL,
		available_tickets INTEGER NOT NULL,
		CHECK (available_tickets >= 0),
		CHECK (available_tickets <= total_tickets)
	);`)
	return err
}

func CreateBookingsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS bookings (
		booking_id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		event_id UUID NOT NULL REFERENCES events (event_id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_price_cents BIGINT NOT NULL,
		status VARCHAR(10) NOT NULL,
		payment_ref VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);`)
	if err != nil {
		return err
	}

	// Callbacks are correlated by payment session reference.
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS bookings_payment_ref_idx
		ON bookings (payment_ref);`)
	return err
}

func CreateSalesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sales (
		booking_id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		event_id UUID NOT NULL,
		quantity INTEGER NOT NULL,
		total_price_cents BIGINT NOT NULL,
		payment_ref VARCHAR(255) NOT NULL,
		confirmed_at TIMESTAMP WITH TIME ZONE NOT NULL
	);`)
	return err
}

func InitialiseDB(ctx context.Context, db *sqlx.DB) error {
	if err := CreateEventsTable(ctx, db); err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}

	if err := CreateBookingsTable(ctx, db); err != nil {
		return fmt.Errorf("creating bookings table: %w", err)
	}

	if err := CreateSalesTable(ctx, db); err != nil {
		return fmt.Errorf("creating sales table: %w", err)
	}

	return nil
}
