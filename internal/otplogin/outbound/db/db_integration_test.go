//go:build integration

package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("otpgate"),
		tcpostgres.WithUsername("otpgate"),
		tcpostgres.WithPassword("otpgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	sqlDB := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator, err := NewMigrator(sqlDB)
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	box, err := secretbox.New(make([]byte, 32))
	require.NoError(t, err)

	return NewDB(pool, box, instrument.NewNoop())
}

func TestDB_ChallengeLifecycle(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.CreateUser(ctx, entity.User{ID: 1, Username: "alice", Email: "alice@example.com", Active: true}))
	require.NoError(t, s.CreateUser(ctx, entity.User{ID: 2, Username: "ghost", Active: false}))

	u, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	_, err = s.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	assert.ErrorIs(t, s.CreateUser(ctx, entity.User{ID: 3, Username: "alice"}), goerror.ErrConflict)

	id := uid.NewUUID().Generate()
	require.NoError(t, s.CreateChallenge(ctx, entity.Challenge{
		ID:        id,
		UserID:    1,
		Secret:    "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		ValidTill: now.Add(5 * time.Minute),
		CreatedAt: now,
	}))

	ch, err := s.GetChallengeByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", ch.Secret)
	assert.False(t, ch.Verified)
	assert.True(t, ch.ValidTill.Equal(now.Add(5*time.Minute)))

	_, err = s.GetChallengeByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	errCheck := errors.New("rejected")
	_, err = s.VerifyChallenge(ctx, id, now, func(entity.Challenge) error { return errCheck })
	assert.ErrorIs(t, err, errCheck)

	ch, err = s.GetChallengeByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, ch.Verified)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range 8 {
		wg.Go(func() {
			_, err := s.VerifyChallenge(ctx, id, now, func(c entity.Challenge) error {
				if c.Verified {
					return errCheck
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 1, success)

	assert.ErrorIs(t, s.MarkChallengeVerified(ctx, id, now), goerror.ErrConflict)
}
