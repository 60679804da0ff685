// Package sms delivers confirmation messages through the Twilio messaging API.
package sms

import (
	"context"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"registro/internal/notify"
	"registro/internal/platform/config"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender sends one SMS per Send call.
type Sender struct {
	cfg    config.SMS
	logger *slog.Logger
	api    messageCreator
}

// New builds a Sender for cfg. The REST client is only constructed when the
// credentials are present.
func New(cfg config.SMS, logger *slog.Logger) *Sender {
	s := &Sender{cfg: cfg, logger: logger}
	if len(cfg.Missing()) == 0 {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		if cfg.Timeout > 0 {
			client.SetTimeout(cfg.Timeout)
		}
		s.api = client.Api
	}
	return s
}

// Missing lists the settings that must be supplied before Send can succeed.
func (s *Sender) Missing() []string {
	return s.cfg.Missing()
}

func (s *Sender) Channel() notify.Channel {
	return notify.ChannelSMS
}

// Send makes exactly one CreateMessage call. The Twilio client does not take a
// context; the HTTP timeout bounds the call and an already cancelled request
// never reaches the provider.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if missing := s.cfg.Missing(); len(missing) > 0 {
		return notify.Fail(notify.ChannelSMS, "missing configuration: "+strings.Join(missing, ", "), nil)
	}
	if err := ctx.Err(); err != nil {
		return notify.Fail(notify.ChannelSMS, "request cancelled", err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(strings.TrimSpace(msg.Destination))
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(notify.Body(msg))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return notify.Fail(notify.ChannelSMS, "provider rejected message", err)
	}
	if resp != nil && resp.Sid != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "sms accepted by provider", "message_sid", *resp.Sid)
	}
	return nil
}
