// Package notify defines the outbound notification capability shared by the
// email and SMS senders.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Channel names a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is the content of one confirmation. Token is the registration id
// the registrant can quote back to support.
type Message struct {
	Token         string
	Name          string
	Destination   string
	ServerAddress string
}

// Sender delivers a Message over one channel. Implementations make exactly
// one attempt and return a *DeliveryError on failure.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// DeliveryError describes a failed delivery. Reason is safe to log; Err is the
// provider error.
type DeliveryError struct {
	Channel Channel
	Reason  string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s delivery failed: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s delivery failed: %s", e.Channel, e.Reason)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Fail builds a DeliveryError for channel.
func Fail(channel Channel, reason string, err error) *DeliveryError {
	return &DeliveryError{Channel: channel, Reason: reason, Err: err}
}

// AsDeliveryError unwraps err to a *DeliveryError if it is one.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Body renders the plain-text confirmation shared by both channels.
func Body(msg Message) string {
	return fmt.Sprintf("Hello %s, your registration is confirmed. Reference: %s. Processed by %s.",
		msg.Name, msg.Token, msg.ServerAddress)
}
