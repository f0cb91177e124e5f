package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/sqlite"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/dbmigrate"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/vinovest/sqlx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	cacheDriverRedis  = "redis"
	cacheDriverMemory = "memory"

	defaultConfigPath = "./config/config.yaml"
)

// ErrUnknownDatabaseDriver is returned for a database.driver other than
// postgres or sqlite.
var ErrUnknownDatabaseDriver = errors.New("app: unknown database driver")

// resolveConfigPath picks the explicit path, then CONFIG_PATH, then the
// local default.
func resolveConfigPath(path string) string {
	if path = strings.TrimSpace(path); path != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("CONFIG_PATH")); env != "" {
		return env
	}
	return defaultConfigPath
}

func loadConfig(path string) (*config.Viper, error) {
	cfg, err := config.NewViper(resolveConfigPath(path))
	if err != nil {
		return nil, err
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	return cfg, nil
}

// databases holds whichever connection database.driver selected.
type databases struct {
	pg   *pgxpool.Pool
	lite *sqlx.DB
}

func (d databases) close() {
	if d.pg != nil {
		d.pg.Close()
	}
	if d.lite != nil {
		//nolint:errcheck // closing on shutdown
		d.lite.Close()
	}
}

// migrator builds a goose provider over the selected connection. The
// returned closer releases the *sql.DB wrapper around the pgx pool.
func (d databases) migrator() (*goose.Provider, func() error, error) {
	if d.lite != nil {
		p, err := sqlite.NewMigrator(d.lite.DB)
		return p, func() error { return nil }, err
	}

	conn := stdlib.OpenDBFromPool(d.pg)
	p, err := db.NewMigrator(conn)
	if err != nil {
		//nolint:errcheck // already failing
		conn.Close()
		return nil, nil, err
	}
	return p, conn.Close, nil
}

func openDatabases(ctx context.Context, cfg config.Config) (databases, error) {
	switch driver := strings.TrimSpace(cfg.GetString("database.driver")); driver {
	case DriverPostgres, "":
		pool, err := openPostgres(ctx, cfg)
		return databases{pg: pool}, err

	case DriverSQLite:
		conn, err := sqlite.Open(cfg.GetString("database.sqlite.dsn"))
		return databases{lite: conn}, err

	default:
		return databases{}, fmt.Errorf("%w: %q", ErrUnknownDatabaseDriver, driver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.GetString("database.url"))
	if err != nil {
		return nil, fmt.Errorf("parse DB connection string: %w", err)
	}

	if v := cfg.GetInt32("database.pool.max_conns"); v > 0 {
		pc.MaxConns = v
	}
	if v := cfg.GetInt32("database.pool.min_conns"); v > 0 {
		pc.MinConns = v
	}
	if v := cfg.GetSecond("database.pool.max_conn_lifetime_seconds"); v > 0 {
		pc.MaxConnLifetime = v
	}
	if v := cfg.GetSecond("database.pool.max_conn_idle_seconds"); v > 0 {
		pc.MaxConnIdleTime = v
	}
	if v := cfg.GetSecond("database.pool.health_check_period_seconds"); v > 0 {
		pc.HealthCheckPeriod = v
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create DB connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	return pool, nil
}

func newSecretbox(cfg config.Config) (*secretbox.XChaCha, error) {
	key := cfg.GetBinary("secretbox.key")
	if len(key) == 0 {
		return nil, errors.New("secretbox.key must be base64 encoded 32 bytes")
	}
	return secretbox.New(key)
}

func (a *App) initConfig() {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		Log: instrument.LogConfig{
			Format:     a.config.GetString("instrument.log_format"),
			Level:      a.config.GetString("instrument.log_level"),
			File:       a.config.GetString("instrument.log_file"),
			MaxSizeMB:  a.config.GetInt("instrument.log_file_max_size_mb"),
			MaxBackups: a.config.GetInt("instrument.log_file_max_backups"),
			MaxAgeDays: a.config.GetInt("instrument.log_file_max_age_days"),
		},
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	// one window per challenge keeps the code stable for the whole validity
	a.totp = otp.NewTOTP(otp.Config{
		Issuer: a.config.GetString("modules.otplogin.otp_issuer"),
		Period: a.config.GetUint("modules.otplogin.otp_validity_seconds"),
		Skew:   a.config.GetUint("modules.otplogin.otp_skew"),
	})
}

func (a *App) initJWT() {
	defaultJWT, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(a.config.GetString("jwt.secret")),
		Issuer:     a.config.GetString("jwt.issuer"),
		Audiences:  a.config.GetArray("jwt.audiences"),
		AccessTTL:  a.config.GetMinute("jwt.access_ttl_minutes"),
		RefreshTTL: a.config.GetMinute("jwt.refresh_ttl_minutes"),
		Clock:      a.clock,
		UUID:       a.uuid,
	})
	if err != nil {
		slog.Error("failed to init jwt token", "error", err)
		os.Exit(1)
	}
	a.jwt = defaultJWT
}

func (a *App) initSecretbox() {
	box, err := newSecretbox(a.config)
	if err != nil {
		slog.Error("failed to init secretbox", "error", err)
		os.Exit(1)
	}
	a.secretbox = box
}

func (a *App) initDatabase() {
	dbs, err := openDatabases(a.ctx, a.config)
	if err != nil {
		slog.Error("failed to init database", "driver", a.config.GetString("database.driver"), "error", err)
		os.Exit(1)
	}
	a.pgConn, a.sqliteConn = dbs.pg, dbs.lite

	if !a.config.GetBool("database.auto_migrate") {
		return
	}

	provider, closeFn, err := dbs.migrator()
	if err != nil {
		slog.Error("failed to init migrator", "error", err)
		os.Exit(1)
	}
	//nolint:errcheck // wrapper only
	defer closeFn()

	if err := dbmigrate.Run(a.ctx, provider, dbmigrate.CommandUp, os.Stdout); err != nil {
		slog.Error("failed to auto migrate database", "error", err)
		os.Exit(1)
	}
}

func (a *App) initCache() {
	switch driver := strings.TrimSpace(a.config.GetString("cache.driver")); driver {
	case cacheDriverMemory, "":
		slog.Info("using in-process cache and lock; run a single instance")
		return

	case cacheDriverRedis:
		opt, err := redis.ParseURL(a.config.GetString("redis.url"))
		if err != nil {
			slog.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}

		rdb := redis.NewClient(opt)

		pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			slog.Error("failed to init redis", "error", err)
			os.Exit(1)
		}

		a.cacheConn = rdb

	default:
		slog.Error("failed to init cache, unknown driver", "driver", driver)
		os.Exit(1)
	}
}

func (a *App) initLock() {
	opts := lock.Options{
		Attempts: a.config.GetUint64("modules.otplogin.lock_retry_attempts"),
	}

	if a.cacheConn != nil {
		a.locker = lock.NewRedis(a.cacheConn, a.uuid, opts)
		return
	}
	a.locker = lock.NewMemory(opts)
}

func (a *App) initMail() {
	// only the notification consumer sends mail
	if !a.config.GetBool("modules.notification.enabled") {
		return
	}

	client, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
		FromName: a.config.GetString("mail.from_name"),
		TLS:      a.config.GetBool("mail.tls"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = client
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				return a.messaging.Close()
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				if a.mail == nil {
					return nil
				}
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				databases{pg: a.pgConn, lite: a.sqliteConn}.close()

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
