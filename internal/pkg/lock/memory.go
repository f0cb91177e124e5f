package lock

import (
	"context"
	"sync"
	"time"
)

// Memory implements Locker inside a single process.
type Memory struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	seq  uint64
	now  func() time.Time
	opts Options
}

type memoryEntry struct {
	seq       uint64
	expiresAt time.Time
}

// NewMemory returns an in-process Locker.
func NewMemory(opts Options) *Memory {
	return &Memory{
		held: make(map[string]memoryEntry),
		now:  time.Now,
		opts: opts,
	}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	var seq uint64

	err := acquireWithRetry(ctx, m.opts, func(context.Context) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		now := m.now()
		if e, ok := m.held[key]; ok && now.Before(e.expiresAt) {
			return false, nil
		}

		m.seq++
		seq = m.seq
		m.held[key] = memoryEntry{seq: seq, expiresAt: now.Add(ttl)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if e, ok := m.held[key]; ok && e.seq == seq {
			delete(m.held, key)
		}
		return nil
	}, nil
}
