package message

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/command"
	"boxoffice/entity"
	"boxoffice/event"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

type ConfirmationDeliverer interface {
	DeliverConfirmation(ctx context.Context, idempotencyKey string, booking entity.Booking) error
}

type SalesRecorder interface {
	Record(ctx context.Context, e event.BookingConfirmed) error
	Remove(ctx context.Context, bookingID string) error
}

type BookingCanceller interface {
	Cancel(ctx context.Context, bookingID string) (entity.Booking, error)
}

// handleDeliverConfirmation hands the confirmed booking to the ticket
// delivery collaborator. Delivery failures are retried by the router
// middleware; they never roll back the confirmation.
func handleDeliverConfirmation(d ConfirmationDeliverer) func(ctx context.Context, e *event.BookingConfirmed) error {
	return func(ctx context.Context, e *event.BookingConfirmed) error {
		booking := entity.Booking{
			BookingID:       e.BookingID,
			UserID:          e.UserID,
			EventID:         e.EventID,
			Quantity:        e.Quantity,
			TotalPriceCents: e.TotalPriceCents,
			Status:          entity.StatusConfirmed,
			PaymentRef:      e.PaymentRef,
		}

		if err := d.DeliverConfirmation(ctx, e.Header.IdempotencyKey, booking); err != nil {
			return fmt.Errorf("delivering confirmation: %w", err)
		}

		return nil
	}
}

func handleRecordSale(r SalesRecorder) func(ctx context.Context, e *event.BookingConfirmed) error {
	return func(ctx context.Context, e *event.BookingConfirmed) error {
		if err := r.Record(ctx, *e); err != nil {
			return fmt.Errorf("recording sale: %w", err)
		}

		return nil
	}
}

func handleRemoveCancelledSale(r SalesRecorder) func(ctx context.Context, e *event.BookingCancelled) error {
	return func(ctx context.Context, e *event.BookingCancelled) error {
		if err := r.Remove(ctx, e.BookingID); err != nil {
			return fmt.Errorf("removing cancelled sale: %w", err)
		}

		return nil
	}
}

// handleCancelBooking serves the expiry sweep scheduler. Cancel is a no-op on
// an already cancelled booking, so redelivered commands are safe. A booking
// that got confirmed before the sweep reached it stays confirmed; retrying
// the command would never succeed, so it is acknowledged and logged.
func handleCancelBooking(c BookingCanceller) func(ctx context.Context, cmd *command.CancelBooking) error {
	return func(ctx context.Context, cmd *command.CancelBooking) error {
		_, err := c.Cancel(ctx, cmd.BookingID)

		var transitionErr entity.InvalidTransitionError
		switch {
		case errors.As(err, &transitionErr):
			log.FromContext(ctx).
				WithField("booking_id", cmd.BookingID).
				Warn("Cancel command rejected: booking already confirmed")
			return nil
		case errors.Is(err, entity.ErrNotFound):
			log.FromContext(ctx).
				WithField("booking_id", cmd.BookingID).
				Warn("Cancel command for unknown booking")
			return nil
		case err != nil:
			return fmt.Errorf("cancelling booking: %w", err)
		}

		return nil
	}
}
