package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"registro/internal/notify"
	"registro/internal/platform/metrics"
	"registro/internal/registration/models"
	"registro/internal/registration/ports/mocks"
	dErrors "registro/pkg/domain-errors"
	"registro/pkg/platform/sentinel"
)

// =============================================================================
// Registration Service Test Suite
// =============================================================================
// The service owns step ordering and error classification. Mocks let each
// test pin which collaborators run and which must never be reached.

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	provider *mocks.MockStoreProvider
	store    *mocks.MockStore
	email    *mocks.MockSender
	sms      *mocks.MockSender
	host     *mocks.MockHostResolver
	cache    *mocks.MockListCache
	metrics  *metrics.Metrics
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = mocks.NewMockStoreProvider(s.ctrl)
	s.store = mocks.NewMockStore(s.ctrl)
	s.email = mocks.NewMockSender(s.ctrl)
	s.sms = mocks.NewMockSender(s.ctrl)
	s.host = mocks.NewMockHostResolver(s.ctrl)
	s.cache = mocks.NewMockListCache(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	s.email.EXPECT().Channel().Return(notify.ChannelEmail).AnyTimes()
	s.sms.EXPECT().Channel().Return(notify.ChannelSMS).AnyTimes()

	var err error
	s.service, err = New(s.provider, s.email, s.sms, s.host,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithListCache(s.cache),
		WithSecretKey(strings.Repeat("k", 32)),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func validInput() models.Input {
	return models.Input{Name: "Ana", Email: "ana@example.com", Phone: "+34600000000"}
}

var storedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setCreatedAt(_ context.Context, reg *models.Registration) error {
	reg.CreatedAt = storedAt
	return nil
}

func (s *ServiceSuite) outcome(name string) float64 {
	return promtest.ToFloat64(s.metrics.Registrations.WithLabelValues(name))
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil store provider", func() {
		_, err := New(nil, s.email, s.sms, s.host)
		s.ErrorContains(err, "store provider is required")
	})
	s.Run("nil email sender", func() {
		_, err := New(s.provider, nil, s.sms, s.host)
		s.ErrorContains(err, "email sender is required")
	})
	s.Run("nil sms sender", func() {
		_, err := New(s.provider, s.email, nil, s.host)
		s.ErrorContains(err, "sms sender is required")
	})
	s.Run("nil host resolver", func() {
		_, err := New(s.provider, s.email, s.sms, nil)
		s.ErrorContains(err, "host resolver is required")
	})
}

// =============================================================================
// Register
// =============================================================================

func (s *ServiceSuite) TestRegisterRunsStepsInOrder() {
	var emailMsg, smsMsg notify.Message
	gomock.InOrder(
		s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil),
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt),
		s.store.EXPECT().Close().Return(nil),
		s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil),
		s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7"),
		s.email.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m notify.Message) error {
			emailMsg = m
			return nil
		}),
		s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m notify.Message) error {
			smsMsg = m
			return nil
		}),
	)

	result, err := s.service.Register(context.Background(), validInput())
	s.Require().NoError(err)
	s.Equal("10.0.0.7", result.ServerAddress)
	s.Equal("Ana", result.Registration.Name)
	s.Equal(storedAt, result.Registration.CreatedAt)
	s.False(result.Registration.ID.IsNil())

	s.Equal("ana@example.com", emailMsg.Destination)
	s.Equal("+34600000000", smsMsg.Destination)
	s.Equal(result.Registration.ID.String(), emailMsg.Token)
	s.Equal(emailMsg.Token, smsMsg.Token)
	s.Equal("10.0.0.7", smsMsg.ServerAddress)
	s.Equal(1.0, s.outcome(metrics.OutcomeCreated))
}

func (s *ServiceSuite) TestRegisterInvalidInputTouchesNothing() {
	s.provider.EXPECT().Acquire(gomock.Any()).Times(0)
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	in := validInput()
	in.Phone = "   "
	_, err := s.service.Register(context.Background(), in)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal(1.0, s.outcome(metrics.OutcomeInvalid))
}

func (s *ServiceSuite) TestRegisterMalformedUUID() {
	s.provider.EXPECT().Acquire(gomock.Any()).Times(0)

	in := validInput()
	in.UUID = "1234"
	_, err := s.service.Register(context.Background(), in)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestRegisterStorageFailuresSkipNotifications() {
	tests := []struct {
		name     string
		setup    func()
		wantCode dErrors.Code
		outcome  string
	}{
		{
			name: "missing database configuration",
			setup: func() {
				s.provider.EXPECT().Acquire(gomock.Any()).
					Return(nil, dErrors.New(dErrors.CodeConfiguration, "missing DB_HOST"))
			},
			wantCode: dErrors.CodeConfiguration,
			outcome:  metrics.OutcomeStorageFailed,
		},
		{
			name: "database unreachable",
			setup: func() {
				s.provider.EXPECT().Acquire(gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))
			},
			wantCode: dErrors.CodeConnectivity,
			outcome:  metrics.OutcomeStorageFailed,
		},
		{
			name: "insert fails",
			setup: func() {
				s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
				s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
				s.store.EXPECT().Close().Return(nil)
			},
			wantCode: dErrors.CodeStorage,
			outcome:  metrics.OutcomeStorageFailed,
		},
		{
			name: "duplicate uuid",
			setup: func() {
				s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
				s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
				s.store.EXPECT().Close().Return(nil)
			},
			wantCode: dErrors.CodeConflict,
			outcome:  metrics.OutcomeConflict,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			tt.setup()
			s.cache.EXPECT().Invalidate(gomock.Any()).Times(0)
			s.host.EXPECT().Resolve(gomock.Any()).Times(0)
			s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
			s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

			result, err := s.service.Register(context.Background(), validInput())
			s.Nil(result)
			s.Equal(tt.wantCode, dErrors.CodeOf(err))
			s.Equal(1.0, s.outcome(tt.outcome))
		})
	}
}

func (s *ServiceSuite) TestRegisterEmailFailureSkipsSMS() {
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt)
	s.store.EXPECT().Close().Return(nil)
	s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(notify.Fail(notify.ChannelEmail, "smtp relay rejected message", errors.New("550")))
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.Register(context.Background(), validInput())
	s.Equal(dErrors.CodeEmailDelivery, dErrors.CodeOf(err))
	_, isDelivery := notify.AsDeliveryError(err)
	s.True(isDelivery, "delivery cause stays in the chain for logging")
	s.Equal(1.0, s.outcome(metrics.OutcomeEmailFailed))
}

func (s *ServiceSuite) TestRegisterSMSFailure() {
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt)
	s.store.EXPECT().Close().Return(nil)
	s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(notify.Fail(notify.ChannelSMS, "missing configuration: TWILIO_AUTH_TOKEN", nil))

	_, err := s.service.Register(context.Background(), validInput())
	s.Equal(dErrors.CodeSMSDelivery, dErrors.CodeOf(err))
	s.Equal(1.0, s.outcome(metrics.OutcomeSMSFailed))
}

func (s *ServiceSuite) TestRegisterIgnoresCacheAndCloseErrors() {
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt)
	s.store.EXPECT().Close().Return(errors.New("conn already closed"))
	s.cache.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis down"))
	s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Register(context.Background(), validInput())
	s.NoError(err)
}

func (s *ServiceSuite) TestFailedInvalidationBypassesCacheUntilRetried() {
	list := sampleList()
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil).Times(3)
	s.store.EXPECT().Close().Return(nil).Times(3)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt)
	s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.store.EXPECT().List(gomock.Any()).Return(list, nil).Times(2)

	gomock.InOrder(
		// insert path and first read both fail to invalidate
		s.cache.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis down")),
		s.cache.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis down")),
		// second read recovers and uses the cache again
		s.cache.EXPECT().Invalidate(gomock.Any()).Return(nil),
		s.cache.EXPECT().Get(gomock.Any()).Return(nil, uint64(2), false, nil),
		s.cache.EXPECT().Set(gomock.Any(), uint64(2), list).Return(nil),
	)

	_, err := s.service.Register(context.Background(), validInput())
	s.Require().NoError(err)

	got, err := s.service.List(context.Background())
	s.Require().NoError(err)
	s.Len(got, 1)

	_, err = s.service.List(context.Background())
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestInvalidationSurvivesCancelledRequest() {
	ctx, cancel := context.WithCancel(context.Background())
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, reg *models.Registration) error {
		reg.CreatedAt = storedAt
		cancel()
		return nil
	})
	s.store.EXPECT().Close().Return(nil)
	s.cache.EXPECT().Invalidate(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		return ctx.Err()
	})
	s.host.EXPECT().Resolve(gomock.Any()).Return("10.0.0.7")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Register(ctx, validInput())
	s.Require().NoError(err)
	s.False(s.service.cacheStale.Load())
}

func (s *ServiceSuite) TestRegisterWithoutCache() {
	svc, err := New(s.provider, s.email, s.sms, s.host)
	s.Require().NoError(err)

	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(setCreatedAt)
	s.store.EXPECT().Close().Return(nil)
	s.host.EXPECT().Resolve(gomock.Any()).Return("h")
	s.email.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)
	s.sms.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	_, err = svc.Register(context.Background(), validInput())
	s.NoError(err)
}

// =============================================================================
// List
// =============================================================================

func sampleList() []*models.Registration {
	a, _ := models.NewRegistration(validInput())
	a.CreatedAt = storedAt
	return []*models.Registration{a}
}

func (s *ServiceSuite) TestListCacheHitSkipsStorage() {
	list := sampleList()
	s.cache.EXPECT().Get(gomock.Any()).Return(list, uint64(3), true, nil)
	s.provider.EXPECT().Acquire(gomock.Any()).Times(0)

	got, err := s.service.List(context.Background())
	s.Require().NoError(err)
	s.Equal(list, got)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ListCache.WithLabelValues("hit")))
}

func (s *ServiceSuite) TestListCacheMissFillsCache() {
	list := sampleList()
	gomock.InOrder(
		s.cache.EXPECT().Get(gomock.Any()).Return(nil, uint64(7), false, nil),
		s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil),
		s.store.EXPECT().List(gomock.Any()).Return(list, nil),
		s.cache.EXPECT().Set(gomock.Any(), uint64(7), list).Return(nil),
		s.store.EXPECT().Close().Return(nil),
	)

	got, err := s.service.List(context.Background())
	s.Require().NoError(err)
	s.Equal(list, got)
}

func (s *ServiceSuite) TestListCacheErrorFallsThrough() {
	list := sampleList()
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, uint64(0), false, errors.New("redis down"))
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().List(gomock.Any()).Return(list, nil)
	s.store.EXPECT().Close().Return(nil)
	// without a generation the result cannot be cached safely
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	got, err := s.service.List(context.Background())
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ListCache.WithLabelValues("error")))
}

func (s *ServiceSuite) TestListStorageFailure() {
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, uint64(0), false, nil)
	s.provider.EXPECT().Acquire(gomock.Any()).Return(s.store, nil)
	s.store.EXPECT().List(gomock.Any()).Return(nil, errors.New("relation \"employees\" does not exist"))
	s.store.EXPECT().Close().Return(nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.List(context.Background())
	s.Equal(dErrors.CodeStorage, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestListMissingConfiguration() {
	s.cache.EXPECT().Get(gomock.Any()).Return(nil, uint64(0), false, nil)
	s.provider.EXPECT().Acquire(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConfiguration, "missing DB_HOST"))

	_, err := s.service.List(context.Background())
	s.Equal(dErrors.CodeConfiguration, dErrors.CodeOf(err))
}

// =============================================================================
// Registrant reference
// =============================================================================

func (s *ServiceSuite) TestRegistrantRef() {
	ref := s.service.registrantRef("Ana@Example.com")
	s.Len(ref, 16)
	s.Equal(ref, s.service.registrantRef("ana@example.com"))
	s.NotContains(ref, "ana")
	s.NotEqual(ref, s.service.registrantRef("luis@example.com"))

	other, err := New(s.provider, s.email, s.sms, s.host, WithSecretKey(strings.Repeat("z", 32)))
	s.Require().NoError(err)
	s.NotEqual(ref, other.registrantRef("ana@example.com"))

	bare, err := New(s.provider, s.email, s.sms, s.host)
	s.Require().NoError(err)
	s.Empty(bare.registrantRef("ana@example.com"))
}
