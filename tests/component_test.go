package tests_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"boxoffice/command"
	"boxoffice/entity"
	"boxoffice/gateway"
	"boxoffice/message"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	redisClient := setupRedis(t)
	dbConn := setupDB(t)
	paymentGateway := gateway.NewFake()
	deliverer := &MockConfirmationDeliverer{}

	startService(t, redisClient, dbConn, paymentGateway, deliverer)

	event := createEvent(t, 10, 2500)

	t.Run("booking reserves tickets", func(t *testing.T) {
		booking := createBooking(t, event.EventID, 4)

		assert.Equal(t, entity.StatusPending, booking.Status)
		assert.Equal(t, int64(10000), booking.TotalPriceCents)
		assert.Equal(t, uint(6), getEvent(t, event.EventID).AvailableTickets)
	})

	t.Run("overselling is rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, "/bookings", map[string]any{
			"user_id":  "user-greedy",
			"event_id": event.EventID,
			"quantity": 7,
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var body struct {
			AvailableTickets uint `json:"available_tickets"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, uint(6), body.AvailableTickets)
		assert.Equal(t, uint(6), getEvent(t, event.EventID).AvailableTickets)
	})

	t.Run("paid booking is confirmed", func(t *testing.T) {
		booking := createBooking(t, event.EventID, 2)
		sessionID := initiatePayment(t, booking.BookingID)
		assert.Equal(t, "cs_test_"+booking.BookingID, sessionID)

		status := sendPaymentCallback(t, paymentGateway, booking.BookingID, "paid")
		require.Equal(t, http.StatusOK, status)

		assertBookingConfirmed(t, booking.BookingID)
		assertConfirmationDelivered(t, deliverer, booking.BookingID)
		assertSaleRecorded(t, dbConn, booking.BookingID)

		confirmed := getBooking(t, booking.BookingID)
		assert.Equal(t, "pi_test_"+booking.BookingID, confirmed.PaymentRef)

		// Confirmation keeps the reservation.
		assert.Equal(t, uint(4), getEvent(t, event.EventID).AvailableTickets)

		// A replayed callback is acknowledged but confirms nothing new: the
		// transition is a no-op, so no second event reaches the deliverer.
		status = sendPaymentCallback(t, paymentGateway, booking.BookingID, "paid")
		require.Equal(t, http.StatusOK, status)

		replayed := getBooking(t, booking.BookingID)
		assert.Equal(t, entity.StatusConfirmed, replayed.Status)
		assert.Equal(t, confirmed.PaymentRef, replayed.PaymentRef)
		assert.Equal(t, 1, deliverer.DeliveriesFor(booking.BookingID))
	})

	t.Run("cancelling releases tickets", func(t *testing.T) {
		booking := createBooking(t, event.EventID, 3)
		require.Equal(t, uint(1), getEvent(t, event.EventID).AvailableTickets)

		resp := doJSON(t, http.MethodDelete, "/bookings/"+booking.BookingID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var cancelled entity.Booking
		decodeBody(t, resp, &cancelled)
		assert.Equal(t, entity.StatusCancelled, cancelled.Status)
		assert.Equal(t, uint(4), getEvent(t, event.EventID).AvailableTickets)

		// Cancelling again is a no-op, not a second release.
		resp = doJSON(t, http.MethodDelete, "/bookings/"+booking.BookingID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
		assert.Equal(t, uint(4), getEvent(t, event.EventID).AvailableTickets)
	})

	t.Run("payment after cancellation is acknowledged", func(t *testing.T) {
		booking := createBooking(t, event.EventID, 2)
		initiatePayment(t, booking.BookingID)

		resp := doJSON(t, http.MethodDelete, "/bookings/"+booking.BookingID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		available := getEvent(t, event.EventID).AvailableTickets

		// The buyer paid anyway. The provider gets a 200 so it stops
		// retrying, and the booking is never re-opened.
		status := sendPaymentCallback(t, paymentGateway, booking.BookingID, "paid")
		require.Equal(t, http.StatusOK, status)

		assert.Equal(t, entity.StatusCancelled, getBooking(t, booking.BookingID).Status)
		assert.Equal(t, available, getEvent(t, event.EventID).AvailableTickets)
		assert.Equal(t, 0, deliverer.DeliveriesFor(booking.BookingID))
	})

	t.Run("expiry sweep command cancels a pending booking", func(t *testing.T) {
		before := getEvent(t, event.EventID).AvailableTickets
		booking := createBooking(t, event.EventID, 1)

		logger := watermill.NewStdLogger(false, false)
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, logger)
		require.NoError(t, err)

		commandBus, err := message.NewCommandBus(publisher, logger)
		require.NoError(t, err)

		err = commandBus.Send(context.Background(), command.NewCancelBooking(booking.BookingID, booking.BookingID))
		require.NoError(t, err)

		assert.EventuallyWithT(
			t,
			func(collectT *assert.CollectT) {
				assert.Equal(collectT, entity.StatusCancelled, getBooking(t, booking.BookingID).Status)
			},
			10*time.Second,
			100*time.Millisecond,
		)
		assert.Equal(t, before, getEvent(t, event.EventID).AvailableTickets)
	})

	t.Run("tampered callback is rejected", func(t *testing.T) {
		booking := createBooking(t, event.EventID, 1)
		payload, _ := paymentGateway.Callback(booking.BookingID, "paid")

		status := postRawCallback(t, payload, "deadbeef")
		require.Equal(t, http.StatusUnauthorized, status)

		assert.Equal(t, entity.StatusPending, getBooking(t, booking.BookingID).Status)
	})
}
