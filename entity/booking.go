package entity

import (
	"fmt"
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking tracks a reservation of tickets for one event by one user.
// TotalPriceCents is fixed at creation and never recomputed. Status moves
// pending -> confirmed or pending -> cancelled and never leaves a terminal
// state; all transitions go through Confirm and Cancel.
type Booking struct {
	BookingID       string    `json:"booking_id" db:"booking_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	EventID         string    `json:"event_id" db:"event_id"`
	Quantity        uint      `json:"quantity" db:"quantity"`
	TotalPriceCents int64     `json:"total_price_cents" db:"total_price_cents"`
	Status          string    `json:"status" db:"status"`
	PaymentRef      string    `json:"payment_ref,omitempty" db:"payment_ref"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type InvalidTransitionError struct {
	BookingID string
	From      string
	To        string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s: invalid transition %s -> %s", e.BookingID, e.From, e.To)
}

// Confirm moves the booking to confirmed and records the payment reference.
// A booking that is already confirmed is left untouched and reported as
// unchanged, which makes replayed payment callbacks safe.
func (b *Booking) Confirm(paymentRef string, now time.Time) (changed bool, err error) {
	switch b.Status {
	case StatusConfirmed:
		return false, nil
	case StatusCancelled:
		return false, InvalidTransitionError{BookingID: b.BookingID, From: b.Status, To: StatusConfirmed}
	}

	b.Status = StatusConfirmed
	b.PaymentRef = paymentRef
	b.UpdatedAt = now

	return true, nil
}

// Cancel moves the booking to cancelled. The caller is responsible for
// releasing the booking's inventory in the same transaction when Cancel
// reports a change. A confirmed sale is never cancelled by this path.
func (b *Booking) Cancel(now time.Time) (changed bool, err error) {
	switch b.Status {
	case StatusCancelled:
		return false, nil
	case StatusConfirmed:
		return false, InvalidTransitionError{BookingID: b.BookingID, From: b.Status, To: StatusCancelled}
	}

	b.Status = StatusCancelled
	b.UpdatedAt = now

	return true, nil
}
