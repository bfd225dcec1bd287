package command

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// CancelBooking asks the booking lifecycle to cancel a pending booking and
// return its tickets to the pool. The expiry sweep scheduler publishes it for
// bookings that never saw a payment callback. Cancelling is idempotent, so
// redelivery is safe.
type CancelBooking struct {
	Header    header `json:"header"`
	BookingID string `json:"booking_id"`
}

func NewCancelBooking(bookingID, idempotencyKey string) CancelBooking {
	return CancelBooking{
		Header:    newHeader(idempotencyKey),
		BookingID: bookingID,
	}
}
