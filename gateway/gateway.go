// Package gateway decouples the booking core from any particular payment
// provider's wire format. The core only ever sees CheckoutSession and
// PaymentEvent; swapping the provider means writing another implementation
// of PaymentGateway.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/entity"
)

// OutcomePaid is the only payment outcome that confirms a booking.
const OutcomePaid = "paid"

// CheckoutSession is the presentation data a caller needs to send the buyer
// to the provider's payment UI.
type CheckoutSession struct {
	SessionID  string `json:"session_id"`
	PaymentURL string `json:"payment_url"`
}

// PaymentEvent is a verified provider callback. BookingID is the correlation
// metadata embedded at session creation and echoed back by the provider.
type PaymentEvent struct {
	SessionID  string
	PaymentRef string
	Outcome    string
	BookingID  string
}

type PaymentGateway interface {
	Initiate(ctx context.Context, booking entity.Booking) (CheckoutSession, error)
	VerifyCallback(payload []byte, signature string) (PaymentEvent, error)
}

// ErrVerificationFailed is returned for any callback that cannot be proven
// to originate from the configured provider. Callers must not mutate any
// state and must not leak why verification failed.
var ErrVerificationFailed = errors.New("callback verification failed")

// UnavailableError reports a provider-side failure during session creation.
// The booking stays pending and its reservation stays held; the caller may
// retry.
type UnavailableError struct {
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable: %s", e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}
