package event

import (
	"time"

	"boxoffice/entity"

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

// BookingConfirmed is published from the confirmation transaction via the
// outbox. Consumers must tolerate at-least-once delivery.
type BookingConfirmed struct {
	Header          header `json:"header"`
	BookingID       string `json:"booking_id"`
	UserID          string `json:"user_id"`
	EventID         string `json:"event_id"`
	Quantity        uint   `json:"quantity"`
	TotalPriceCents int64  `json:"total_price_cents"`
	PaymentRef      string `json:"payment_ref"`
}

func NewBookingConfirmed(idempotencyKey string, booking entity.Booking) BookingConfirmed {
	return BookingConfirmed{
		Header:          newHeader(idempotencyKey),
		BookingID:       booking.BookingID,
		UserID:          booking.UserID,
		EventID:         booking.EventID,
		Quantity:        booking.Quantity,
		TotalPriceCents: booking.TotalPriceCents,
		PaymentRef:      booking.PaymentRef,
	}
}

// BookingCancelled is published from the cancellation transaction via the
// outbox, after the booking's tickets have been returned to the pool.
type BookingCancelled struct {
	Header    header `json:"header"`
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	EventID   string `json:"event_id"`
	Quantity  uint   `json:"quantity"`
}

func NewBookingCancelled(idempotencyKey string, booking entity.Booking) BookingCancelled {
	return BookingCancelled{
		Header:    newHeader(idempotencyKey),
		BookingID: booking.BookingID,
		UserID:    booking.UserID,
		EventID:   booking.EventID,
		Quantity:  booking.Quantity,
	}
}
