package tests_test

import (
	"context"
	"sync"

	"boxoffice/entity"
)

type MockConfirmationDeliverer struct {
	lock       sync.Mutex
	Deliveries []DeliverConfirmationRequest
}

type DeliverConfirmationRequest struct {
	idempotencyKey string
	booking        entity.Booking
}

func (m *MockConfirmationDeliverer) DeliverConfirmation(_ context.Context, idempotencyKey string, booking entity.Booking) error {
	m.lock.Lock()
	m.Deliveries = append(m.Deliveries, DeliverConfirmationRequest{idempotencyKey: idempotencyKey, booking: booking})
	m.lock.Unlock()

	return nil
}

func (m *MockConfirmationDeliverer) DeliveriesFor(bookingID string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	var n int
	for _, d := range m.Deliveries {
		if d.booking.BookingID == bookingID {
			n++
		}
	}

	return n
}
