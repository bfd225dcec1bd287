package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"boxoffice/entity"
)

// Fake is a deterministic PaymentGateway for tests. Initiate never leaves
// the process, and Callback fabricates provider payloads signed with the
// fake's secret, so VerifyCallback exercises the real verification and
// parsing code against them.
type Fake struct {
	secret []byte

	mu          sync.Mutex
	sessions    map[string]string
	initiateErr error
}

func NewFake() *Fake {
	return &Fake{
		secret:   []byte("fake-checkout-secret"),
		sessions: map[string]string{},
	}
}

// FailInitiate makes subsequent Initiate calls report the gateway as
// unavailable.
func (f *Fake) FailInitiate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateErr = err
}

func (f *Fake) Initiate(_ context.Context, booking entity.Booking) (CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initiateErr != nil {
		return CheckoutSession{}, UnavailableError{Err: f.initiateErr}
	}

	sessionID := "cs_test_" + booking.BookingID
	f.sessions[sessionID] = booking.BookingID

	return CheckoutSession{
		SessionID:  sessionID,
		PaymentURL: "https://checkout.test/pay/" + sessionID,
	}, nil
}

func (f *Fake) VerifyCallback(payload []byte, signature string) (PaymentEvent, error) {
	if !validSignature(f.secret, payload, signature) {
		return PaymentEvent{}, ErrVerificationFailed
	}

	return parseCallback(payload)
}

// Callback fabricates a signed session-completed payload for a booking, as
// the provider would deliver it after the buyer pays (or fails to).
func (f *Fake) Callback(bookingID, outcome string) (payload []byte, signature string) {
	return f.callback(bookingID, outcome, map[string]string{"booking_id": bookingID})
}

// UncorrelatedCallback fabricates a signed session-completed payload whose
// metadata is missing, as delivered by providers that strip or never echo it.
func (f *Fake) UncorrelatedCallback(bookingID, outcome string) (payload []byte, signature string) {
	return f.callback(bookingID, outcome, nil)
}

func (f *Fake) callback(bookingID, outcome string, metadata map[string]string) (payload []byte, signature string) {
	var envelope callbackEnvelope
	envelope.Type = eventTypeSessionCompleted
	envelope.Data.SessionID = "cs_test_" + bookingID
	envelope.Data.PaymentRef = "pi_test_" + bookingID
	envelope.Data.PaymentStatus = outcome
	envelope.Data.Metadata = metadata

	payload, err := json.Marshal(envelope)
	if err != nil {
		panic(fmt.Sprintf("marshalling fake callback: %s", err))
	}

	return payload, signPayload(f.secret, payload)
}
