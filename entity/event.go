package entity

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidQuantity is returned before any lock is taken when a caller
// asks to reserve or release a non-positive number of tickets.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// ErrNotFound is returned when a referenced event or booking does not exist.
var ErrNotFound = errors.New("not found")

// Event is a bookable event with a finite pool of tickets.
// AvailableTickets is mutated only by the inventory ledger and holds
// 0 <= available <= total at all times.
type Event struct {
	EventID          string    `json:"event_id" db:"event_id"`
	Title            string    `json:"title" db:"title"`
	Venue            string    `json:"venue" db:"venue"`
	StartTime        time.Time `json:"start_time" db:"start_time"`
	UnitPriceCents   int64     `json:"unit_price_cents" db:"unit_price_cents"`
	TotalTickets     uint      `json:"total_tickets" db:"total_tickets"`
	AvailableTickets uint      `json:"available_tickets" db:"available_tickets"`
}

type InsufficientCapacityError struct {
	EventID   string
	Available uint
	Requested uint
}

func (e InsufficientCapacityError) Error() string {
	return fmt.Sprintf("not enough tickets for event %s: %d available, %d requested", e.EventID, e.Available, e.Requested)
}
