// Package service orchestrates a registration: validate, persist, notify by
// email, notify by SMS. Steps run strictly in that order and the first
// failure ends the request.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/hkdf"

	"registro/internal/notify"
	"registro/internal/platform/metrics"
	"registro/internal/platform/tracing"
	"registro/internal/registration/models"
	"registro/internal/registration/ports"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/email"
	"registro/pkg/platform/sentinel"
	"registro/pkg/requestcontext"
)

const tracerName = "registro/registration"

// Service registers employees and lists them.
type Service struct {
	stores  ports.StoreProvider
	email   ports.Sender
	sms     ports.Sender
	host    ports.HostResolver
	cache   ports.ListCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	secret  []byte

	// set when an insert could not invalidate the list cache; reads bypass
	// the cache until an Invalidate succeeds
	cacheStale atomic.Bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithListCache enables list caching. A nil cache leaves caching off.
func WithListCache(c ports.ListCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithSecretKey sets the key registrant_ref values are derived from. The
// HMAC key is an HKDF subkey so SECRET_KEY itself never signs log data.
func WithSecretKey(key string) Option {
	return func(s *Service) {
		s.secret = deriveRefKey(key)
	}
}

func deriveRefKey(key string) []byte {
	if key == "" {
		return nil
	}
	sub := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(key), nil, []byte("registro registrant-ref v1"))
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil
	}
	return sub
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New constructs a Service. Every collaborator is required; options are not.
func New(stores ports.StoreProvider, emailSender, smsSender ports.Sender, host ports.HostResolver, opts ...Option) (*Service, error) {
	if stores == nil {
		return nil, errors.New("store provider is required")
	}
	if emailSender == nil {
		return nil, errors.New("email sender is required")
	}
	if smsSender == nil {
		return nil, errors.New("sms sender is required")
	}
	if host == nil {
		return nil, errors.New("host resolver is required")
	}
	s := &Service{
		stores: stores,
		email:  emailSender,
		sms:    smsSender,
		host:   host,
		logger: slog.New(slog.DiscardHandler),
		tracer: tracing.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register runs the full registration flow for in.
//
// Error codes: invalid_input, conflict, configuration_error,
// storage_unavailable, storage_error, email_delivery_failed,
// sms_delivery_failed. A notification failure leaves the record in place.
func (s *Service) Register(ctx context.Context, in models.Input) (*models.RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.register")
	defer span.End()

	reg, err := models.NewRegistration(in)
	if err != nil {
		s.metrics.IncrementRegistration(metrics.OutcomeInvalid)
		s.logger.InfoContext(ctx, "registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"reason", err.Error(),
		)
		fail(span, err)
		return nil, err
	}

	log := s.logger.With(
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", reg.ID.String(),
		"registrant_ref", s.registrantRef(reg.Email),
	)
	span.SetAttributes(attribute.String("registration.id", reg.ID.String()))

	if err := s.persist(ctx, reg); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementRegistration(metrics.OutcomeConflict)
		} else {
			s.metrics.IncrementRegistration(metrics.OutcomeStorageFailed)
		}
		log.ErrorContext(ctx, "registration not stored", "error", err)
		fail(span, err)
		return nil, err
	}
	log.InfoContext(ctx, "registration stored",
		"email", email.Mask(reg.Email),
		"phone", email.MaskPhone(reg.Phone),
		"created_at", reg.CreatedAt,
	)

	s.invalidateList(ctx, log)

	address := s.host.Resolve(ctx)
	msg := notify.Message{
		Token:         reg.ID.String(),
		Name:          reg.Name,
		ServerAddress: address,
	}

	msg.Destination = reg.Email
	if err := s.notify(ctx, s.email, msg, "registration.notify.email"); err != nil {
		s.metrics.IncrementRegistration(metrics.OutcomeEmailFailed)
		log.ErrorContext(ctx, "email notification failed", "error", err)
		wrapped := dErrors.Wrap(err, dErrors.CodeEmailDelivery, "registration stored but email notification failed")
		fail(span, wrapped)
		return nil, wrapped
	}
	log.InfoContext(ctx, "email notification sent", "email", email.Mask(reg.Email))

	msg.Destination = reg.Phone
	if err := s.notify(ctx, s.sms, msg, "registration.notify.sms"); err != nil {
		s.metrics.IncrementRegistration(metrics.OutcomeSMSFailed)
		log.ErrorContext(ctx, "sms notification failed", "error", err)
		wrapped := dErrors.Wrap(err, dErrors.CodeSMSDelivery, "registration stored but sms notification failed")
		fail(span, wrapped)
		return nil, wrapped
	}
	log.InfoContext(ctx, "sms notification sent", "phone", email.MaskPhone(reg.Phone))

	s.metrics.IncrementRegistration(metrics.OutcomeCreated)
	return &models.RegisterResult{Registration: reg, ServerAddress: address}, nil
}

// List returns every registration, oldest first, consulting the list cache
// when one is configured.
func (s *Service) List(ctx context.Context) ([]*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.list")
	defer span.End()

	var (
		gen       uint64
		cacheable bool
	)
	if s.cache != nil && s.cacheUsable(ctx) {
		regs, g, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.metrics.IncrementListCache("error")
			s.logger.WarnContext(ctx, "list cache read failed", "error", err)
		case ok:
			s.metrics.IncrementListCache("hit")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return regs, nil
		default:
			s.metrics.IncrementListCache("miss")
			gen, cacheable = g, true
		}
	}

	store, err := s.acquire(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	defer s.release(ctx, store)

	regs, err := store.List(ctx)
	if err != nil {
		wrapped := dErrors.Wrap(err, dErrors.CodeStorage, "failed to list registrations")
		fail(span, wrapped)
		return nil, wrapped
	}

	if cacheable {
		if err := s.cache.Set(ctx, gen, regs); err != nil {
			s.logger.WarnContext(ctx, "list cache write failed", "error", err)
		}
	}
	span.SetAttributes(attribute.Int("registration.count", len(regs)))
	return regs, nil
}

func (s *Service) persist(ctx context.Context, reg *models.Registration) error {
	ctx, span := s.tracer.Start(ctx, "registration.persist")
	defer span.End()

	store, err := s.acquire(ctx)
	if err != nil {
		fail(span, err)
		return err
	}
	defer s.release(ctx, store)

	if err := store.Create(ctx, reg); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.Wrap(err, dErrors.CodeConflict, "a registration with this uuid already exists")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeStorage, "failed to store registration")
		}
		fail(span, err)
		return err
	}
	return nil
}

// acquire keeps configuration and connectivity codes from the gateway and
// classifies anything else as unavailable storage.
func (s *Service) acquire(ctx context.Context) (ports.Store, error) {
	store, err := s.stores.Acquire(ctx)
	if err == nil {
		return store, nil
	}
	if dErrors.HasCode(err, dErrors.CodeConfiguration) || dErrors.HasCode(err, dErrors.CodeConnectivity) {
		return nil, err
	}
	return nil, dErrors.Wrap(err, dErrors.CodeConnectivity, "database unavailable")
}

func (s *Service) release(ctx context.Context, store ports.Store) {
	if err := store.Close(); err != nil {
		s.logger.WarnContext(ctx, "failed to release storage session", "error", err)
	}
}

// invalidateList runs after the commit, so it ignores request cancellation.
func (s *Service) invalidateList(ctx context.Context, log *slog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.cacheStale.Store(true)
		log.WarnContext(ctx, "list cache invalidation failed, bypassing cache", "error", err)
	}
}

// cacheUsable retries a failed invalidation before the cache is trusted again.
func (s *Service) cacheUsable(ctx context.Context) bool {
	if !s.cacheStale.Load() {
		return true
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "list cache still stale", "error", err)
		return false
	}
	s.cacheStale.Store(false)
	return true
}

func (s *Service) notify(ctx context.Context, sender ports.Sender, msg notify.Message, spanName string) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()
	err := sender.Send(ctx, msg)
	s.metrics.ObserveNotification(string(sender.Channel()), err == nil, time.Since(start))
	if err != nil {
		if de, ok := notify.AsDeliveryError(err); ok {
			span.SetAttributes(attribute.String("notify.reason", de.Reason))
		}
		fail(span, err)
	}
	return err
}

// registrantRef is a keyed digest of the email so log lines for one person
// correlate without carrying the address.
func (s *Service) registrantRef(address string) string {
	if len(s.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(address))))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
