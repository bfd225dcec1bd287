package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"boxoffice/entity"
	"boxoffice/gateway"
	"boxoffice/reconcile"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBookings mimics the booking lifecycle: monotone transitions with an
// idempotent confirm.
type memoryBookings struct {
	mu       sync.Mutex
	bookings map[string]*entity.Booking
	confirms int
}

func newMemoryBookings(bookings ...*entity.Booking) *memoryBookings {
	m := &memoryBookings{bookings: map[string]*entity.Booking{}}
	for _, b := range bookings {
		m.bookings[b.BookingID] = b
	}
	return m
}

func (m *memoryBookings) Confirm(_ context.Context, bookingID, paymentRef string) (entity.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return entity.Booking{}, entity.ErrNotFound
	}

	changed, err := b.Confirm(paymentRef, time.Now().UTC())
	if err != nil {
		return entity.Booking{}, err
	}
	if changed {
		m.confirms++
	}

	return *b, nil
}

func (m *memoryBookings) GetByPaymentRef(_ context.Context, paymentRef string) (entity.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if paymentRef == "" {
		return entity.Booking{}, entity.ErrNotFound
	}
	for _, b := range m.bookings {
		if b.PaymentRef == paymentRef {
			return *b, nil
		}
	}

	return entity.Booking{}, entity.ErrNotFound
}

func paidEvent(bookingID string) gateway.PaymentEvent {
	return gateway.PaymentEvent{
		SessionID:  "cs_test_" + bookingID,
		PaymentRef: "pi_test_" + bookingID,
		Outcome:    gateway.OutcomePaid,
		BookingID:  bookingID,
	}
}

func TestReconcile_ConfirmsPendingBooking(t *testing.T) {
	booking := &entity.Booking{BookingID: uuid.NewString(), Status: entity.StatusPending}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), paidEvent(booking.BookingID))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, booking.Status)
	assert.Equal(t, "pi_test_"+booking.BookingID, booking.PaymentRef)
}

func TestReconcile_DuplicateDeliveryIsNoOp(t *testing.T) {
	booking := &entity.Booking{BookingID: uuid.NewString(), Status: entity.StatusPending}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	require.NoError(t, r.Reconcile(context.Background(), paidEvent(booking.BookingID)))
	require.NoError(t, r.Reconcile(context.Background(), paidEvent(booking.BookingID)))
	require.NoError(t, r.Reconcile(context.Background(), paidEvent(booking.BookingID)))

	assert.Equal(t, entity.StatusConfirmed, booking.Status)
	assert.Equal(t, 1, bookings.confirms, "duplicate deliveries must confirm exactly once")
}

func TestReconcile_UnknownBooking(t *testing.T) {
	r := reconcile.New(newMemoryBookings())

	err := r.Reconcile(context.Background(), paidEvent(uuid.NewString()))
	require.ErrorIs(t, err, reconcile.ErrUnknownBooking)
}

func TestReconcile_CancelledBookingIsFlagged(t *testing.T) {
	booking := &entity.Booking{BookingID: uuid.NewString(), Status: entity.StatusCancelled}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), paidEvent(booking.BookingID))

	var transitionErr entity.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, entity.StatusCancelled, booking.Status, "reconciliation must not re-open a cancelled booking")
}

func TestReconcile_MissingMetadataFallsBackToPaymentRef(t *testing.T) {
	booking := &entity.Booking{
		BookingID:  uuid.NewString(),
		Status:     entity.StatusPending,
		PaymentRef: "cs_test_123",
	}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), gateway.PaymentEvent{
		SessionID:  "cs_test_123",
		PaymentRef: "pi_test_123",
		Outcome:    gateway.OutcomePaid,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, booking.Status)
	assert.Equal(t, "pi_test_123", booking.PaymentRef)
}

func TestReconcile_MangledMetadataFallsBackToPaymentRef(t *testing.T) {
	booking := &entity.Booking{
		BookingID:  uuid.NewString(),
		Status:     entity.StatusPending,
		PaymentRef: "cs_test_456",
	}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), gateway.PaymentEvent{
		SessionID:  "cs_test_456",
		PaymentRef: "pi_test_456",
		Outcome:    gateway.OutcomePaid,
		BookingID:  "not-a-booking-id",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConfirmed, booking.Status)
}

func TestReconcile_UncorrelatableEventIsUnknownBooking(t *testing.T) {
	booking := &entity.Booking{BookingID: uuid.NewString(), Status: entity.StatusPending}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), gateway.PaymentEvent{
		SessionID:  "cs_test_unseen",
		PaymentRef: "pi_test_unseen",
		Outcome:    gateway.OutcomePaid,
	})
	require.ErrorIs(t, err, reconcile.ErrUnknownBooking)
	assert.Equal(t, entity.StatusPending, booking.Status)
	assert.Equal(t, 0, bookings.confirms)
}

func TestReconcile_NonPaidOutcomeIsDiscarded(t *testing.T) {
	booking := &entity.Booking{BookingID: uuid.NewString(), Status: entity.StatusPending}
	bookings := newMemoryBookings(booking)
	r := reconcile.New(bookings)

	err := r.Reconcile(context.Background(), gateway.PaymentEvent{
		SessionID: "cs_test_" + booking.BookingID,
		Outcome:   "unpaid",
		BookingID: booking.BookingID,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, booking.Status)
	assert.Equal(t, 0, bookings.confirms)
}
