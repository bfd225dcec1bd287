package http

import (
	"net/http"

	"boxoffice/gateway"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
)

var ErrServerClosed = http.ErrServerClosed

func NewRouter(
	events EventRepo,
	bookings BookingRepo,
	paymentGateway gateway.PaymentGateway,
	reconciler Reconciler,
) *echo.Echo {
	server := commonHTTP.NewEcho()

	server.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	h := handler{
		events:     events,
		bookings:   bookings,
		gateway:    paymentGateway,
		reconciler: reconciler,
	}

	server.POST("/events", h.CreateEvent)
	server.GET("/events", h.ListEvents)
	server.GET("/events/:event_id", h.GetEvent)

	server.POST("/bookings", h.CreateBooking)
	server.GET("/bookings/:booking_id", h.GetBooking)
	server.DELETE("/bookings/:booking_id", h.CancelBooking)
	server.POST("/bookings/:booking_id/payment", h.InitiatePayment)

	server.POST("/payments/webhook", h.PaymentWebhook)

	return server
}
