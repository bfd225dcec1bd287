// Package reconcile applies verified payment events to bookings exactly
// once. Confirmation is idempotent and transitions are monotone, so the
// engine is safe under at-least-once delivery and arbitrary reordering of
// duplicate callbacks for the same booking.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/entity"
	"boxoffice/gateway"

	"github.com/google/uuid"
)

// ErrUnknownBooking is returned when a payment event cannot be correlated to
// any booking. The webhook boundary acknowledges it to stop provider retry
// storms, but logs it for investigation.
var ErrUnknownBooking = errors.New("unknown booking")

type BookingStore interface {
	Confirm(ctx context.Context, bookingID, paymentRef string) (entity.Booking, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (entity.Booking, error)
}

type Reconciler struct {
	bookings BookingStore
}

func New(bookings BookingStore) Reconciler {
	return Reconciler{
		bookings: bookings,
	}
}

// Reconcile drives the booking correlated to the payment event to its
// terminal state. Events without a paid outcome are discarded with no state
// change. A booking that was cancelled before the payment completed is
// reported as an InvalidTransitionError; it is never re-opened or refunded
// here, that is flagged for operational handling.
func (r Reconciler) Reconcile(ctx context.Context, e gateway.PaymentEvent) error {
	if e.Outcome != gateway.OutcomePaid {
		return nil
	}

	bookingID, err := r.correlate(ctx, e)
	if err != nil {
		return err
	}

	_, err = r.bookings.Confirm(ctx, bookingID, e.PaymentRef)
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("%w: booking %q for session %s", ErrUnknownBooking, bookingID, e.SessionID)
	}
	if err != nil {
		return fmt.Errorf("confirming booking %s: %w", bookingID, err)
	}

	return nil
}

// correlate resolves the payment event to a booking id. The provider echoes
// the booking id back as opaque metadata; when that is missing or mangled the
// session reference stored at initiation is the fallback. An event matching
// neither is ErrUnknownBooking, which retrying can never repair.
func (r Reconciler) correlate(ctx context.Context, e gateway.PaymentEvent) (string, error) {
	if uuid.Validate(e.BookingID) == nil {
		return e.BookingID, nil
	}

	booking, err := r.bookings.GetByPaymentRef(ctx, e.SessionID)
	if errors.Is(err, entity.ErrNotFound) {
		return "", fmt.Errorf("%w: session %s carries no usable metadata and matches no stored payment ref",
			ErrUnknownBooking, e.SessionID)
	}
	if err != nil {
		return "", fmt.Errorf("correlating session %s: %w", e.SessionID, err)
	}

	return booking.BookingID, nil
}
