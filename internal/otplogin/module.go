package otplogin

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpgate/internal/otplogin/inbound"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/sqlite"
	"github.com/shandysiswandi/otpgate/internal/otplogin/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/vinovest/sqlx"
)

// ErrStoreRequired is returned when neither a postgres pool nor a sqlite
// handle is provided, or both are.
var ErrStoreRequired = errors.New("otplogin: exactly one of postgres or sqlite connection is required")

// Dependency wires the module. Exactly one of PGConn and SQLiteConn must be
// set; CacheConn is optional and falls back to an in-process cache.
type Dependency struct {
	PGConn     *pgxpool.Pool
	SQLiteConn *sqlx.DB
	CacheConn  redis.UniversalClient

	Secretbox  secretbox.Box              `validate:"required"`
	Locker     lock.Locker                `validate:"required"`
	Messaging  messaging.Publisher        `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc, err := newUsecase(dep)
	if err != nil {
		return err
	}

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

func newUsecase(dep Dependency) (*usecase.Usecase, error) {
	ucDep := usecase.Dependency{
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Locker:        dep.Locker,
		Validator:     dep.Validator,
		Config:        dep.Config,
		UUID:          dep.UUID,
		Totp:          dep.Totp,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	}

	switch {
	case dep.PGConn != nil && dep.SQLiteConn == nil:
		ucDep.RepoDB = db.NewDB(dep.PGConn, dep.Secretbox, dep.Instrument)
	case dep.SQLiteConn != nil && dep.PGConn == nil:
		ucDep.RepoDB = sqlite.NewStore(dep.SQLiteConn, dep.Secretbox, dep.Instrument)
	default:
		return nil, ErrStoreRequired
	}

	// pending entries never outlive the challenge they point at
	ttl := dep.Config.GetSecond("modules.otplogin.pending_ttl_seconds")
	if validity := dep.Config.GetSecond("modules.otplogin.otp_validity_seconds"); ttl <= 0 || (validity > 0 && ttl > validity) {
		ttl = validity
	}
	if ttl <= 0 {
		ttl = usecase.DefaultValidity
	}

	if dep.CacheConn != nil {
		ucDep.RepoCache = cache.NewRedis(dep.CacheConn, ttl, dep.Instrument)
	} else {
		mem, err := cache.NewMemory(dep.Config.GetInt("cache.memory.size"), ttl, dep.Clock, dep.Instrument)
		if err != nil {
			return nil, err
		}
		ucDep.RepoCache = mem
	}

	return usecase.New(ucDep), nil
}
