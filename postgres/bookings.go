package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/event"
	"boxoffice/message"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type BookingRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewBookingRepo(db *sqlx.DB, logger watermill.LoggerAdapter) BookingRepo {
	return BookingRepo{
		db:     db,
		logger: logger,
	}
}

// Create reserves quantity tickets and persists a pending booking in a single
// transaction. Either both the decrement and the insert commit, or neither
// does. The total price is fixed here from the event's unit price and is
// never recomputed.
func (r BookingRepo) Create(ctx context.Context, userID, eventID string, quantity uint) (entity.Booking, error) {
	if quantity == 0 {
		return entity.Booking{}, entity.ErrInvalidQuantity
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("beginning transaction: %w", err)
	}

	booking, err := create(ctx, tx, userID, eventID, quantity)
	if err != nil {
		return entity.Booking{}, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.Booking{}, fmt.Errorf("committing transaction: %w", err)
	}

	return booking, nil
}

func create(ctx context.Context, tx *sqlx.Tx, userID, eventID string, quantity uint) (entity.Booking, error) {
	e, err := reserveTickets(ctx, tx, eventID, quantity)
	if err != nil {
		return entity.Booking{}, err
	}

	now := time.Now().UTC()
	booking := entity.Booking{
		BookingID:       uuid.NewString(),
		UserID:          userID,
		EventID:         eventID,
		Quantity:        quantity,
		TotalPriceCents: e.UnitPriceCents * int64(quantity),
		Status:          entity.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO bookings
		(booking_id, user_id, event_id, quantity, total_price_cents, status, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		booking.BookingID, booking.UserID, booking.EventID, booking.Quantity,
		booking.TotalPriceCents, booking.Status, booking.PaymentRef,
		booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("inserting booking: %w", err)
	}

	return booking, nil
}

func (r BookingRepo) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	var b entity.Booking
	err := r.db.GetContext(ctx, &b, `SELECT booking_id, user_id, event_id, quantity,
		total_price_cents, status, payment_ref, created_at, updated_at
		FROM bookings WHERE booking_id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// GetByPaymentRef looks a booking up by its payment session or intent
// reference, the secondary index callbacks are correlated by. The empty
// reference never matches: rows without a session hold the column default.
func (r BookingRepo) GetByPaymentRef(ctx context.Context, paymentRef string) (entity.Booking, error) {
	if paymentRef == "" {
		return entity.Booking{}, entity.ErrNotFound
	}

	var b entity.Booking
	err := r.db.GetContext(ctx, &b, `SELECT booking_id, user_id, event_id, quantity,
		total_price_cents, status, payment_ref, created_at, updated_at
		FROM bookings WHERE payment_ref = $1`, paymentRef)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("querying booking by payment ref: %w", err)
	}

	return b, nil
}

// SetPaymentRef stores the checkout session reference returned by the
// payment gateway. Only a pending booking can start a payment session.
func (r BookingRepo) SetPaymentRef(ctx context.Context, bookingID, paymentRef string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings
		SET payment_ref = $2, updated_at = $3
		WHERE booking_id = $1 AND status = $4`,
		bookingID, paymentRef, time.Now().UTC(), entity.StatusPending)
	if err != nil {
		return fmt.Errorf("updating payment ref: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n != 1 {
		return entity.ErrNotFound
	}

	return nil
}

// Confirm transitions a booking to confirmed and stores the payment
// reference. Confirming an already confirmed booking is a no-op, so a
// replayed payment callback commits nothing and publishes nothing.
func (r BookingRepo) Confirm(ctx context.Context, bookingID, paymentRef string) (entity.Booking, error) {
	return r.transition(ctx, bookingID, func(b *entity.Booking) (bool, any, error) {
		changed, err := b.Confirm(paymentRef, time.Now().UTC())
		if err != nil {
			return false, nil, err
		}

		return changed, event.NewBookingConfirmed(b.BookingID, *b), nil
	})
}

// Cancel transitions a booking to cancelled and returns its tickets to the
// pool in the same transaction. Cancelling an already cancelled booking is a
// no-op; a confirmed booking is never cancelled by this path.
func (r BookingRepo) Cancel(ctx context.Context, bookingID string) (entity.Booking, error) {
	return r.transition(ctx, bookingID, func(b *entity.Booking) (bool, any, error) {
		changed, err := b.Cancel(time.Now().UTC())
		if err != nil {
			return false, nil, err
		}

		return changed, event.NewBookingCancelled(b.BookingID, *b), nil
	})
}

// transition serialises all status changes for one booking through its row
// lock, applies the state machine, and publishes the resulting domain event
// through the outbox within the same transaction.
func (r BookingRepo) transition(
	ctx context.Context,
	bookingID string,
	apply func(b *entity.Booking) (bool, any, error),
) (entity.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("beginning transaction: %w", err)
	}

	booking, err := r.applyTransition(ctx, tx, bookingID, apply)
	if err != nil {
		return entity.Booking{}, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return entity.Booking{}, fmt.Errorf("committing transaction: %w", err)
	}

	return booking, nil
}

func (r BookingRepo) applyTransition(
	ctx context.Context,
	tx *sqlx.Tx,
	bookingID string,
	apply func(b *entity.Booking) (bool, any, error),
) (entity.Booking, error) {
	var b entity.Booking
	err := tx.GetContext(ctx, &b, `SELECT booking_id, user_id, event_id, quantity,
		total_price_cents, status, payment_ref, created_at, updated_at
		FROM bookings WHERE booking_id = $1 FOR UPDATE`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("locking booking row: %w", err)
	}

	wasPending := b.Status == entity.StatusPending

	changed, domainEvent, err := apply(&b)
	if err != nil {
		return entity.Booking{}, err
	}
	if !changed {
		return b, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE bookings
		SET status = $2, payment_ref = $3, updated_at = $4
		WHERE booking_id = $1`,
		b.BookingID, b.Status, b.PaymentRef, b.UpdatedAt)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("updating booking: %w", err)
	}

	// Cancelling a pending booking frees its inventory atomically with the
	// status change, so availability and booking status never diverge.
	if wasPending && b.Status == entity.StatusCancelled {
		if err := releaseTickets(ctx, tx, b.EventID, b.Quantity); err != nil {
			return entity.Booking{}, err
		}
	}

	if err := message.PublishInTx(ctx, domainEvent, tx.Tx, r.logger); err != nil {
		return entity.Booking{}, fmt.Errorf("publishing event in transaction: %w", err)
	}

	return b, nil
}
