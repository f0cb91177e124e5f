package otplogin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/sqlite"
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
)

func newTestDependency(t *testing.T) Dependency {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  otplogin:\n    otp_validity_seconds: 300\n    pending_ttl_seconds: 900\n"))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	box, err := secretbox.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(strings.Repeat("k", 64)),
		Issuer:     "otpgate",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Clock:      clock.New(),
		UUID:       uid.NewUUID(),
	})
	require.NoError(t, err)

	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })

	mgr := goroutine.NewManager(4)
	t.Cleanup(func() { _ = mgr.Wait() })

	return Dependency{
		Secretbox: box,
		Locker:    lock.NewMemory(lock.Options{}),
		Messaging: broker,
		Router: router.NewRouter(router.Config{
			Config:     cfg,
			UUID:       uid.NewUUID(),
			JWT:        tokens,
			Instrument: instrument.NewNoop(),
		}),
		Config:     cfg,
		Instrument: instrument.NewNoop(),
		UUID:       uid.NewUUID(),
		Clock:      clock.New(),
		Totp:       otp.NewTOTP(otp.Config{Issuer: "otpgate", Period: 300}),
		Validator:  v,
		JWT:        tokens,
		Goroutine:  mgr,
	}
}

func openSQLite(t *testing.T) Dependency {
	t.Helper()

	conn, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	migrator, err := sqlite.NewMigrator(conn.DB)
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	dep := newTestDependency(t)
	dep.SQLiteConn = conn
	return dep
}

func TestNew_RequiresDependencies(t *testing.T) {
	dep := newTestDependency(t)
	dep.Locker = nil

	assert.Error(t, New(dep))
}

func TestNew_RequiresExactlyOneStore(t *testing.T) {
	dep := newTestDependency(t)
	assert.ErrorIs(t, New(dep), ErrStoreRequired)
}

func TestNew_SQLiteWiring(t *testing.T) {
	dep := openSQLite(t)
	require.NoError(t, New(dep))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/otp/generate", strings.NewReader(`{"username":"ghost"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	dep.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_active_account")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec = httptest.NewRecorder()
	dep.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewUsecase_FallsBackToMemoryCache(t *testing.T) {
	dep := openSQLite(t)

	uc, err := newUsecase(dep)
	require.NoError(t, err)
	assert.NotNil(t, uc)
}
