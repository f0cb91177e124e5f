package usecase

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/cache"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/sqlite"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const testConfig = `
modules:
  otplogin:
    otp_validity_seconds: 300
    resend_cooldown_minutes: 1
    notify_timeout_seconds: 5
`

var epoch = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	uc    *Usecase
	store *sqlite.Store
	cache *cache.Memory
	pub   *recordingMessaging
	clock *clock.Manual
	jwt   *jwt.Symmetric
	mgr   *goroutine.Manager
}

func newDependency(t *testing.T, clk *clock.Manual) Dependency {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(strings.Repeat("s", 64)),
		Issuer:     "otpgate",
		Audiences:  []string{"otpgate-api"},
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Clock:      clk,
		UUID:       uid.NewUUID(),
	})
	require.NoError(t, err)

	mgr := goroutine.NewManager(16)
	t.Cleanup(func() { _ = mgr.Wait() })

	return Dependency{
		Locker:     lock.NewMemory(lock.Options{}),
		Validator:  v,
		Config:     cfg,
		UUID:       uid.NewUUID(),
		Totp:       otp.NewTOTP(otp.Config{Issuer: "otpgate", Period: 300}),
		Clock:      clk,
		JWT:        tokens,
		Instrument: instrument.NewNoop(),
		Goroutine:  mgr,
	}
}

// newFixture wires the usecase to a real sqlite store and in-memory cache.
// Pass a file dsn when the test needs concurrent writers.
func newFixture(t *testing.T, dsn string) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	migrator, err := sqlite.NewMigrator(conn.DB)
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	box, err := secretbox.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := sqlite.NewStore(conn, box, instrument.NewNoop())
	require.NoError(t, store.CreateUser(ctx, entity.User{ID: 1, Username: "alice", Email: "alice@example.com", Active: true}))
	require.NoError(t, store.CreateUser(ctx, entity.User{ID: 2, Username: "bob", Email: "bob@example.com", Active: false}))

	clk := clock.NewManual(epoch)
	dep := newDependency(t, clk)

	mem, err := cache.NewMemory(128, 10*time.Minute, clk, instrument.NewNoop())
	require.NoError(t, err)

	pub := &recordingMessaging{}
	dep.RepoDB = store
	dep.RepoCache = mem
	dep.RepoMessaging = pub

	return &fixture{
		uc:    New(dep),
		store: store,
		cache: mem,
		pub:   pub,
		clock: clk,
		jwt:   dep.JWT.(*jwt.Symmetric),
		mgr:   dep.Goroutine,
	}
}

func fileDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "otplogin.db")
}

// generate runs OTPGenerate, lets any scheduled delivery finish and checks
// the exact number of deliveries published so far.
func (f *fixture) generate(t *testing.T, username string, wantDeliveries int) string {
	t.Helper()

	out, err := f.uc.OTPGenerate(context.Background(), OTPGenerateInput{Username: username})
	require.NoError(t, err)
	f.settle(t)
	require.Equal(t, wantDeliveries, f.pub.count(), "deliveries after generate %q", username)
	return out.RequestID
}

// settle waits until no background delivery is running.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return f.mgr.InFlight() == 0 }, time.Second, time.Millisecond)
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, reason, goerror.ReasonOf(err), "error: %v", err)
}
