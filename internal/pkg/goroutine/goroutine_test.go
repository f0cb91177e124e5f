package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_RunsAndJoinsErrors(t *testing.T) {
	m := NewManager(4)
	errBoom := errors.New("boom")

	var ran atomic.Int32
	for i := range 3 {
		ok := m.Go(context.Background(), func(context.Context) error {
			ran.Add(1)
			if i == 1 {
				return errBoom
			}
			return nil
		})
		assert.True(t, ok)
	}

	err := m.Wait()
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(3), ran.Load())

	assert.False(t, m.Go(context.Background(), func(context.Context) error { return nil }))
}

func TestManager_RecoversPanic(t *testing.T) {
	m := NewManager(1)
	m.Go(context.Background(), func(context.Context) error { panic("kaboom") })
	assert.NoError(t, m.Wait())
}

func TestManager_CapacityAndCancel(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})

	assert.True(t, m.Go(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.False(t, m.Go(context.Background(), func(context.Context) error { return nil }))
	close(release)
	assert.NoError(t, m.Wait())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m2 := NewManager(1)
	var ran atomic.Bool
	m2.Go(ctx, func(context.Context) error { ran.Store(true); return nil })
	assert.NoError(t, m2.Wait())
	assert.False(t, ran.Load())
}

func TestManager_Nil(t *testing.T) {
	var m *Manager
	assert.False(t, m.Go(context.Background(), func(context.Context) error { return nil }))
	assert.NoError(t, m.Wait())
}

func TestManager_InFlight(t *testing.T) {
	m := NewManager(2)
	assert.Zero(t, m.InFlight())

	release := make(chan struct{})
	assert.True(t, m.Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))
	assert.Equal(t, 1, m.InFlight())

	close(release)
	assert.NoError(t, m.Wait())
	assert.Zero(t, m.InFlight())

	var nilManager *Manager
	assert.Zero(t, nilManager.InFlight())
}
