package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boxoffice/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) EventRepo {
	return EventRepo{
		db: db,
	}
}

// Add inserts a new event with the full ticket pool available.
func (r EventRepo) Add(ctx context.Context, e entity.Event) (entity.Event, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.AvailableTickets = e.TotalTickets

	_, err := r.db.ExecContext(ctx, `INSERT INTO events
		(event_id, title, venue, start_time, unit_price_cents, total_tickets, available_tickets)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		e.EventID, e.Title, e.Venue, e.StartTime, e.UnitPriceCents, e.TotalTickets, e.AvailableTickets)
	if err != nil {
		return entity.Event{}, fmt.Errorf("inserting event: %w", err)
	}

	return e, nil
}

func (r EventRepo) Get(ctx context.Context, eventID string) (entity.Event, error) {
	var e entity.Event
	err := r.db.GetContext(ctx, &e, `SELECT event_id, title, venue, start_time,
		unit_price_cents, total_tickets, available_tickets
		FROM events WHERE event_id = $1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("querying event: %w", err)
	}

	return e, nil
}

func (r EventRepo) List(ctx context.Context) ([]entity.Event, error) {
	var events []entity.Event
	err := r.db.SelectContext(ctx, &events, `SELECT event_id, title, venue, start_time,
		unit_price_cents, total_tickets, available_tickets
		FROM events ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	return events, nil
}

// reserveTickets locks the event row and decrements the available count in
// one critical section, so concurrent reservations against the same event are
// serialised while different events never block each other. It returns the
// locked event as it was before the decrement, which carries the unit price
// the booking's total is computed from.
func reserveTickets(ctx context.Context, tx *sqlx.Tx, eventID string, quantity uint) (entity.Event, error) {
	if quantity == 0 {
		return entity.Event{}, entity.ErrInvalidQuantity
	}

	var e entity.Event
	err := tx.GetContext(ctx, &e, `SELECT event_id, title, venue, start_time,
		unit_price_cents, total_tickets, available_tickets
		FROM events WHERE event_id = $1 FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("locking event row: %w", err)
	}

	if quantity > e.AvailableTickets {
		return entity.Event{}, entity.InsufficientCapacityError{
			EventID:   eventID,
			Available: e.AvailableTickets,
			Requested: quantity,
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE events
		SET available_tickets = available_tickets - $2
		WHERE event_id = $1`, eventID, quantity)
	if err != nil {
		return entity.Event{}, fmt.Errorf("decrementing available tickets: %w", err)
	}

	return e, nil
}

// releaseTickets returns quantity tickets to the pool. The guard against
// exceeding total_tickets is a programming-error check, not a user-facing
// condition: release is only ever called with a quantity previously reserved.
func releaseTickets(ctx context.Context, tx *sqlx.Tx, eventID string, quantity uint) error {
	if quantity == 0 {
		return entity.ErrInvalidQuantity
	}

	res, err := tx.ExecContext(ctx, `UPDATE events
		SET available_tickets = available_tickets + $2
		WHERE event_id = $1 AND available_tickets + $2 <= total_tickets`,
		eventID, quantity)
	if err != nil {
		return fmt.Errorf("incrementing available tickets: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("releasing %d tickets for event %s would exceed total capacity", quantity, eventID)
	}

	return nil
}
