package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

func TestMemory_Pending(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewManual(now)
	m, err := NewMemory(0, 15*time.Minute, clk, instrument.NewNoop())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = m.GetPending(ctx, 1)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	last := now.Add(-time.Second)
	want := entity.PendingChallenge{
		Code:           "123456",
		RecordID:       "rec-1",
		ValidTill:      now.Add(5 * time.Minute),
		LastNotifiedAt: &last,
	}
	require.NoError(t, m.SetPending(ctx, 1, want))

	got, err := m.GetPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.RecordID, got.RecordID)
	assert.True(t, want.ValidTill.Equal(got.ValidTill))
	require.NotNil(t, got.LastNotifiedAt)
	assert.True(t, last.Equal(*got.LastNotifiedAt))

	_, err = m.GetPending(ctx, 2)
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	require.NoError(t, m.DeletePending(ctx, 1))
	_, err = m.GetPending(ctx, 1)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestMemory_Expiry(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	m, err := NewMemory(10, time.Minute, clk, instrument.NewNoop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.SetPending(ctx, 1, entity.PendingChallenge{Code: "000001"}))

	clk.Advance(59 * time.Second)
	_, err = m.GetPending(ctx, 1)
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = m.GetPending(ctx, 1)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestMemory_Eviction(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	m, err := NewMemory(2, time.Hour, clk, instrument.NewNoop())
	require.NoError(t, err)

	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, m.SetPending(ctx, id, entity.PendingChallenge{Code: "000001"}))
	}

	_, err = m.GetPending(ctx, 1)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	_, err = m.GetPending(ctx, 3)
	assert.NoError(t, err)
}
