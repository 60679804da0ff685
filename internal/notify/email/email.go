// Package email delivers confirmation messages through an SMTP relay.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"

	"registro/internal/notify"
	"registro/internal/platform/config"
)

// Subject is fixed for every confirmation email.
const Subject = "Registration confirmed"

type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender sends one email per Send call. Configuration is checked per call so a
// misconfigured relay fails the request rather than the process.
type Sender struct {
	cfg     config.SMTP
	logger  *slog.Logger
	connect func(cfg config.SMTP) (dialer, error)
}

// New builds a Sender for cfg. A nil logger discards output.
func New(cfg config.SMTP, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sender{cfg: cfg, logger: logger, connect: newClient}
}

// Missing lists the settings that must be supplied before Send can succeed.
func (s *Sender) Missing() []string {
	return s.cfg.Missing()
}

func (s *Sender) Channel() notify.Channel {
	return notify.ChannelEmail
}

// Send makes exactly one delivery attempt bounded by the configured timeout.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if missing := s.cfg.Missing(); len(missing) > 0 {
		return notify.Fail(notify.ChannelEmail, "missing configuration: "+strings.Join(missing, ", "), nil)
	}

	m, err := s.build(msg)
	if err != nil {
		return notify.Fail(notify.ChannelEmail, "invalid message", err)
	}

	client, err := s.connect(s.cfg)
	if err != nil {
		return notify.Fail(notify.ChannelEmail, "smtp client setup failed", err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return notify.Fail(notify.ChannelEmail, "smtp relay rejected message", err)
	}
	s.logger.DebugContext(ctx, "email accepted by relay", "relay", s.cfg.Host, "port", s.cfg.Port)
	return nil
}

func (s *Sender) build(msg notify.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(strings.TrimSpace(msg.Destination)); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, notify.Body(msg))
	return m, nil
}

func newClient(cfg config.SMTP) (dialer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	return mail.NewClient(cfg.Host, opts...)
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}
