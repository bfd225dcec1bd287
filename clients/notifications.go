package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boxoffice/entity"
)

// NotificationClient asks the ticket delivery service to render and email
// the tickets for a confirmed booking. Delivery is fire-and-forget from the
// core's perspective: the caller retries on error, and the idempotency key
// lets the delivery service deduplicate.
type NotificationClient struct {
	baseURL string
	client  *http.Client
}

func NewNotificationClient(baseURL string) NotificationClient {
	return NotificationClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type confirmationRequest struct {
	BookingID       string `json:"booking_id"`
	UserID          string `json:"user_id"`
	EventID         string `json:"event_id"`
	Quantity        uint   `json:"quantity"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

func (c NotificationClient) DeliverConfirmation(ctx context.Context, idempotencyKey string, booking entity.Booking) error {
	body, err := json.Marshal(confirmationRequest{
		BookingID:       booking.BookingID,
		UserID:          booking.UserID,
		EventID:         booking.EventID,
		Quantity:        booking.Quantity,
		TotalPriceCents: booking.TotalPriceCents,
	})
	if err != nil {
		return fmt.Errorf("marshalling confirmation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/confirmations", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending confirmation request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}
