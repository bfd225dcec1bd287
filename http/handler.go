package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"boxoffice/entity"
	"boxoffice/gateway"
	"boxoffice/reconcile"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type EventRepo interface {
	Add(ctx context.Context, e entity.Event) (entity.Event, error)
	Get(ctx context.Context, eventID string) (entity.Event, error)
	List(ctx context.Context) ([]entity.Event, error)
}

type BookingRepo interface {
	Create(ctx context.Context, userID, eventID string, quantity uint) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	Cancel(ctx context.Context, bookingID string) (entity.Booking, error)
	SetPaymentRef(ctx context.Context, bookingID, paymentRef string) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, e gateway.PaymentEvent) error
}

type handler struct {
	events     EventRepo
	bookings   BookingRepo
	gateway    gateway.PaymentGateway
	reconciler Reconciler
}

func (h handler) CreateEvent(c echo.Context) error {
	var request entity.Event
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	if request.TotalTickets == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "total_tickets must be a positive integer")
	}
	if request.UnitPriceCents < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "unit_price_cents must not be negative")
	}

	e, err := h.events.Add(c.Request().Context(), request)
	if err != nil {
		return fmt.Errorf("adding event: %w", err)
	}

	return c.JSON(http.StatusCreated, e)
}

func (h handler) ListEvents(c echo.Context) error {
	events, err := h.events.List(c.Request().Context())
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	return c.JSON(http.StatusOK, events)
}

func (h handler) GetEvent(c echo.Context) error {
	e, err := h.events.Get(c.Request().Context(), c.Param("event_id"))
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if err != nil {
		return fmt.Errorf("getting event: %w", err)
	}

	return c.JSON(http.StatusOK, e)
}

type createBookingRequest struct {
	UserID   string `json:"user_id"`
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
}

type insufficientCapacityResponse struct {
	Message          string `json:"message"`
	AvailableTickets uint   `json:"available_tickets"`
}

// CreateBooking reserves tickets and creates a pending booking as one atomic
// unit. Capacity and quantity failures are recovered here into user-facing
// responses.
func (h handler) CreateBooking(c echo.Context) error {
	var request createBookingRequest
	if err := c.Bind(&request); err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to parse request",
			Internal: fmt.Errorf("failed to bind request: %w", err),
		}
	}

	if request.Quantity <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a positive integer")
	}
	if request.UserID == "" || request.EventID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and event_id are required")
	}

	booking, err := h.bookings.Create(c.Request().Context(), request.UserID, request.EventID, uint(request.Quantity))

	var capacityErr entity.InsufficientCapacityError
	switch {
	case errors.As(err, &capacityErr):
		return c.JSON(http.StatusConflict, insufficientCapacityResponse{
			Message:          fmt.Sprintf("only %d ticket(s) available", capacityErr.Available),
			AvailableTickets: capacityErr.Available,
		})
	case errors.Is(err, entity.ErrInvalidQuantity):
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a positive integer")
	case errors.Is(err, entity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	case err != nil:
		return fmt.Errorf("creating booking: %w", err)
	}

	return c.JSON(http.StatusCreated, booking)
}

func (h handler) GetBooking(c echo.Context) error {
	booking, err := h.bookings.Get(c.Request().Context(), c.Param("booking_id"))
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}
	if err != nil {
		return fmt.Errorf("getting booking: %w", err)
	}

	return c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a pending booking and returns its tickets to the
// pool. Repeating the cancellation is a no-op; a confirmed booking is never
// cancelled here.
func (h handler) CancelBooking(c echo.Context) error {
	booking, err := h.bookings.Cancel(c.Request().Context(), c.Param("booking_id"))

	var transitionErr entity.InvalidTransitionError
	switch {
	case errors.As(err, &transitionErr):
		return echo.NewHTTPError(http.StatusConflict, "booking is already confirmed")
	case errors.Is(err, entity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	case err != nil:
		return fmt.Errorf("cancelling booking: %w", err)
	}

	return c.JSON(http.StatusOK, booking)
}

type initiatePaymentResponse struct {
	BookingID  string `json:"booking_id"`
	SessionID  string `json:"session_id"`
	PaymentURL string `json:"payment_url"`
}

// InitiatePayment creates a provider checkout session for a pending booking
// and stores the session reference for later callback correlation.
func (h handler) InitiatePayment(c echo.Context) error {
	ctx := c.Request().Context()

	booking, err := h.bookings.Get(ctx, c.Param("booking_id"))
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}
	if err != nil {
		return fmt.Errorf("getting booking: %w", err)
	}

	if booking.Status != entity.StatusPending {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("booking is %s", booking.Status))
	}

	session, err := h.gateway.Initiate(ctx, booking)

	var unavailable gateway.UnavailableError
	if errors.As(err, &unavailable) {
		// The booking stays pending and its reservation stays held, so the
		// caller can retry.
		return &echo.HTTPError{
			Code:     http.StatusServiceUnavailable,
			Message:  "payment provider unavailable, try again",
			Internal: err,
		}
	}
	if err != nil {
		return fmt.Errorf("initiating payment: %w", err)
	}

	if err := h.bookings.SetPaymentRef(ctx, booking.BookingID, session.SessionID); err != nil {
		// The booking can leave pending between the status check and here;
		// SetPaymentRef only touches pending rows.
		if errors.Is(err, entity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusConflict, "booking is no longer pending")
		}

		return fmt.Errorf("storing payment ref: %w", err)
	}

	return c.JSON(http.StatusOK, initiatePaymentResponse{
		BookingID:  booking.BookingID,
		SessionID:  session.SessionID,
		PaymentURL: session.PaymentURL,
	})
}

// PaymentWebhook verifies a provider callback and reconciles it against the
// correlated booking. Conditions the provider cannot fix by retrying are
// acknowledged with 200 and logged instead.
func (h handler) PaymentWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return &echo.HTTPError{
			Code:     http.StatusBadRequest,
			Message:  "failed to read request",
			Internal: fmt.Errorf("reading webhook payload: %w", err),
		}
	}

	paymentEvent, err := h.gateway.VerifyCallback(payload, c.Request().Header.Get(gateway.SignatureHeader))
	if err != nil {
		// Fail closed without leaking why.
		return &echo.HTTPError{
			Code:     http.StatusUnauthorized,
			Message:  http.StatusText(http.StatusUnauthorized),
			Internal: fmt.Errorf("verifying callback: %w", err),
		}
	}

	err = h.reconciler.Reconcile(c.Request().Context(), paymentEvent)

	var transitionErr entity.InvalidTransitionError
	switch {
	case errors.Is(err, reconcile.ErrUnknownBooking):
		logrus.WithFields(logrus.Fields{
			"session_id": paymentEvent.SessionID,
			"booking_id": paymentEvent.BookingID,
		}).Warn("Payment callback for unknown booking")
	case errors.As(err, &transitionErr):
		// Paid after cancellation. Acknowledged so the provider stops
		// retrying; flagged for operational handling, never auto-refunded.
		logrus.WithFields(logrus.Fields{
			"session_id": paymentEvent.SessionID,
			"booking_id": transitionErr.BookingID,
			"status":     transitionErr.From,
		}).Error("Payment received for a booking in a terminal state")
	case err != nil:
		return fmt.Errorf("reconciling payment event: %w", err)
	}

	return c.NoContent(http.StatusOK)
}
