package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type failingJWT struct {
	jwt.JWT
	failOn jwt.Kind
}

func (f failingJWT) Issue(kind jwt.Kind, uid int64, username string) (string, error) {
	if kind == f.failOn {
		return "", errors.New("sign failed")
	}
	return f.JWT.Issue(kind, uid, username)
}

func TestTokenRefresh(t *testing.T) {
	f := newFixture(t, ":memory:")
	ctx := context.Background()

	access, err := f.jwt.Issue(jwt.KindAccess, 1, "alice")
	require.NoError(t, err)
	refresh, err := f.jwt.Issue(jwt.KindRefresh, 1, "alice")
	require.NoError(t, err)

	t.Run("refresh token", func(t *testing.T) {
		out, err := f.uc.TokenRefresh(ctx, TokenRefreshInput{Refresh: refresh})
		require.NoError(t, err)

		claims, err := f.jwt.Verify(out.Access, jwt.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims.UserID)
		assert.Equal(t, "alice", claims.Username)
	})

	for name, token := range map[string]string{
		"access token":    access,
		"garbage":         "not-a-token",
		"tampered":        refresh[:len(refresh)-2] + "xx",
		"signed by other": otherRefresh(t),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.TokenRefresh(ctx, TokenRefreshInput{Refresh: token})
			requireReason(t, err, ReasonRefreshTokenNotValid)

			var gerr *goerror.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, 401, gerr.StatusCode())
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(25 * time.Hour)
		_, err := f.uc.TokenRefresh(ctx, TokenRefreshInput{Refresh: refresh})
		requireReason(t, err, ReasonRefreshTokenNotValid)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := f.uc.TokenRefresh(ctx, TokenRefreshInput{Refresh: "  "})

		var gerr *goerror.Error
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, goerror.TypeValidation, gerr.Type())
	})
}

func otherRefresh(t *testing.T) string {
	t.Helper()

	other := newDependency(t, clock.NewManual(epoch))
	j, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte("another-secret-another-secret-another-secret-another-secret-0000"),
		Issuer:     "otpgate",
		Audiences:  []string{"otpgate-api"},
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Clock:      clock.NewManual(epoch),
		UUID:       other.UUID,
	})
	require.NoError(t, err)

	token, err := j.Issue(jwt.KindRefresh, 1, "alice")
	require.NoError(t, err)
	return token
}

func TestIssueFor_SigningFailure(t *testing.T) {
	user := entity.User{ID: 1, Username: "alice"}

	for _, kind := range []jwt.Kind{jwt.KindAccess, jwt.KindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			dep := newDependency(t, clock.NewManual(epoch))
			dep.JWT = failingJWT{JWT: dep.JWT, failOn: kind}

			_, err := New(dep).issueFor(context.Background(), user)

			var gerr *goerror.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, goerror.TypeServer, gerr.Type())
		})
	}
}

func TestMe(t *testing.T) {
	dep := newDependency(t, clock.NewManual(epoch))
	db := new(mockRepoDB)
	db.On("GetUserByID", mock.Anything, int64(1)).
		Return(&entity.User{ID: 1, Username: "alice", Email: "alice@example.com", Active: true}, nil)
	db.On("GetUserByID", mock.Anything, int64(2)).Return(nil, goerror.ErrNotFound)
	dep.RepoDB = db
	uc := New(dep)

	out, err := uc.Me(jwt.SetAuth(context.Background(), jwt.Claims{UserID: 1, Username: "alice"}))
	require.NoError(t, err)
	assert.Equal(t, &MeOutput{ID: 1, Username: "alice", Email: "alice@example.com"}, out)

	_, err = uc.Me(jwt.SetAuth(context.Background(), jwt.Claims{UserID: 2, Username: "bob"}))
	requireReason(t, err, ReasonNoActiveAccount)

	_, err = uc.Me(context.Background())
	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 401, gerr.StatusCode())
}
