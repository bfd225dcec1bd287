package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"boxoffice/entity"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback payload,
// keyed with the shared secret configured at session creation time.
const SignatureHeader = "Checkout-Signature"

const eventTypeSessionCompleted = "checkout.session.completed"

// CheckoutClient talks to a hosted checkout provider over HTTP. It is the
// one concrete PaymentGateway implementation in production.
type CheckoutClient struct {
	baseURL string
	secret  []byte
	client  *http.Client
}

func NewCheckoutClient(baseURL, secret string) CheckoutClient {
	return CheckoutClient{
		baseURL: baseURL,
		secret:  []byte(secret),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createSessionRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Quantity    uint              `json:"quantity"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type createSessionResponse struct {
	SessionID  string `json:"session_id"`
	PaymentURL string `json:"payment_url"`
}

// Initiate creates a payable session for the booking's total price and
// quantity, with the booking id embedded as opaque correlation metadata.
func (c CheckoutClient) Initiate(ctx context.Context, booking entity.Booking) (CheckoutSession, error) {
	body, err := json.Marshal(createSessionRequest{
		AmountCents: booking.TotalPriceCents,
		Quantity:    booking.Quantity,
		Description: fmt.Sprintf("%d x ticket(s)", booking.Quantity),
		Metadata: map[string]string{
			"booking_id": booking.BookingID,
		},
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("marshalling session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("creating session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return CheckoutSession{}, UnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return CheckoutSession{}, UnavailableError{Err: fmt.Errorf("unexpected status code: %d", res.StatusCode)}
	}

	var session createSessionResponse
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return CheckoutSession{}, UnavailableError{Err: fmt.Errorf("decoding session response: %w", err)}
	}

	return CheckoutSession{
		SessionID:  session.SessionID,
		PaymentURL: session.PaymentURL,
	}, nil
}

// VerifyCallback checks the payload's signature against the shared secret
// and parses the provider event. It fails closed: any signature mismatch or
// malformed payload is ErrVerificationFailed with no further detail.
func (c CheckoutClient) VerifyCallback(payload []byte, signature string) (PaymentEvent, error) {
	if !validSignature(c.secret, payload, signature) {
		return PaymentEvent{}, ErrVerificationFailed
	}

	return parseCallback(payload)
}

func signPayload(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, payload []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	return hmac.Equal(mac.Sum(nil), want)
}

type callbackEnvelope struct {
	Type string `json:"type"`
	Data struct {
		SessionID     string            `json:"session_id"`
		PaymentRef    string            `json:"payment_ref"`
		PaymentStatus string            `json:"payment_status"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"data"`
}

func parseCallback(payload []byte) (PaymentEvent, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return PaymentEvent{}, ErrVerificationFailed
	}

	// Event types other than a completed session carry no outcome; the
	// reconciler acknowledges and discards them.
	if envelope.Type != eventTypeSessionCompleted {
		return PaymentEvent{SessionID: envelope.Data.SessionID}, nil
	}

	return PaymentEvent{
		SessionID:  envelope.Data.SessionID,
		PaymentRef: envelope.Data.PaymentRef,
		Outcome:    envelope.Data.PaymentStatus,
		BookingID:  envelope.Data.Metadata["booking_id"],
	}, nil
}
