package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultValidity      = 300 * time.Second
	defaultNotifyTimeout = 10 * time.Second
	defaultLockTTL       = 5 * time.Second
)

const (
	ReasonNoActiveAccount      = "no_active_account"
	ReasonNotFound             = "not_found"
	ReasonInvalidOTP           = "invalid_otp"
	ReasonRefreshTokenNotValid = "refresh_token_not_valid"
)

type OTPDeliveryEvent struct {
	UserID    int64
	Username  string
	Email     string
	RequestID string
	Code      string
	ValidTill time.Time
}

type repoMessaging interface {
	PublishOTPDelivery(ctx context.Context, msg OTPDeliveryEvent) error
}

type repoDB interface {
	GetUserByUsername(ctx context.Context, username string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)

	CreateChallenge(ctx context.Context, ch entity.Challenge) error
	GetChallengeByID(ctx context.Context, id string) (*entity.Challenge, error)
	VerifyChallenge(ctx context.Context, id string, at time.Time, check func(entity.Challenge) error) (*entity.Challenge, error)
}

type repoCache interface {
	GetPending(ctx context.Context, userID int64) (*entity.PendingChallenge, error)
	SetPending(ctx context.Context, userID int64, p entity.PendingChallenge) error
	DeletePending(ctx context.Context, userID int64) error
}

type Usecase struct {
	repoDB        repoDB
	repoCache     repoCache
	repoMessaging repoMessaging
	locker        lock.Locker
	validator     validator.Validator
	cfg           config.Config
	uuid          uid.StringID
	totp          otp.OTP
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	events metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoCache     repoCache
	RepoMessaging repoMessaging
	Locker        lock.Locker
	Validator     validator.Validator
	Config        config.Config
	UUID          uid.StringID
	Totp          otp.OTP
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	events, err := dep.Instrument.Meter("otplogin.usecase").Int64Counter(
		"otplogin.otp.events",
		metric.WithDescription("OTP lifecycle events by outcome"),
	)
	if err != nil {
		slog.Error("failed to create otp event counter", "error", err)
	}

	return &Usecase{
		repoDB:        dep.RepoDB,
		repoCache:     dep.RepoCache,
		repoMessaging: dep.RepoMessaging,
		locker:        dep.Locker,
		validator:     dep.Validator,
		cfg:           dep.Config,
		uuid:          dep.UUID,
		totp:          dep.Totp,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		events:        events,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otplogin.usecase").Start(ctx, name)
}

func (s *Usecase) record(ctx context.Context, event string) {
	if s.events != nil {
		s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	}
}

func (s *Usecase) validity() time.Duration {
	if d := s.cfg.GetSecond("modules.otplogin.otp_validity_seconds"); d > 0 {
		return d
	}
	return DefaultValidity
}

func (s *Usecase) resendCooldown() time.Duration {
	return s.cfg.GetMinute("modules.otplogin.resend_cooldown_minutes")
}

func (s *Usecase) notifyTimeout() time.Duration {
	if d := s.cfg.GetSecond("modules.otplogin.notify_timeout_seconds"); d > 0 {
		return d
	}
	return defaultNotifyTimeout
}

func (s *Usecase) lockTTL() time.Duration {
	if d := s.cfg.GetSecond("modules.otplogin.lock_ttl_seconds"); d > 0 {
		return d
	}
	return defaultLockTTL
}

func errNoActiveAccount() error {
	return goerror.NewBusiness("No active account found.", goerror.CodeUnauthorized,
		goerror.WithReason(ReasonNoActiveAccount))
}

func errChallengeNotFound() error {
	return goerror.NewBusiness("Not found", goerror.CodeInvalidInput,
		goerror.WithReason(ReasonNotFound))
}

func errInvalidOTP() error {
	return goerror.NewBusiness("Invalid OTP", goerror.CodeInvalidInput,
		goerror.WithReason(ReasonInvalidOTP))
}

func errRefreshNotValid(cause error) error {
	return goerror.NewBusiness("Refresh token not valid", goerror.CodeUnauthorized,
		goerror.WithReason(ReasonRefreshTokenNotValid), goerror.WithCause(cause))
}

// errCanceled keeps the context error reachable through errors.Is.
func errCanceled(cause error) error {
	return goerror.NewBusiness("Request canceled", goerror.CodeTimeout, goerror.WithCause(cause))
}
