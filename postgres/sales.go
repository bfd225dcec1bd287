package postgres

import (
	"context"
	"fmt"
	"time"

	"boxoffice/event"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SalesRepo maintains a read model of confirmed sales, built from
// BookingConfirmed events. Inserts are keyed by booking id and ignore
// conflicts, so redelivered events leave a single row.
type SalesRepo struct {
	db *sqlx.DB
}

func NewSalesRepo(db *sqlx.DB) SalesRepo {
	return SalesRepo{
		db: db,
	}
}

func (r SalesRepo) Record(ctx context.Context, e event.BookingConfirmed) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sales
		(booking_id, user_id, event_id, quantity, total_price_cents, payment_ref, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING;`,
		e.BookingID, e.UserID, e.EventID, e.Quantity, e.TotalPriceCents,
		e.PaymentRef, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting sale: %w", err)
	}

	return nil
}

func (r SalesRepo) Remove(ctx context.Context, bookingID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sales WHERE booking_id = $1", bookingID)
	if err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}

	return nil
}
