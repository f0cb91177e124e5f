package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const DefaultMemorySize = 10_000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory keeps pending challenges in a size bounded LRU with per entry
// expiry. It is only correct for a single process.
type Memory struct {
	lru   *lru.Cache
	ttl   time.Duration
	clock clock.Clocker
	ins   instrument.Instrumentation
}

func NewMemory(size int, ttl time.Duration, clk clock.Clocker, ins instrument.Instrumentation) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}

	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &Memory{lru: c, ttl: ttl, clock: clk, ins: ins}, nil
}

func (m *Memory) GetPending(ctx context.Context, userID int64) (_ *entity.PendingChallenge, err error) {
	_, span := startSpan(ctx, m.ins, "GetPending")
	defer func() { endSpan(span, err) }()

	key := pendingKey(userID)
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, goerror.ErrNotFound
	}

	e, ok := v.(memoryEntry)
	if !ok || !m.clock.Now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, goerror.ErrNotFound
	}

	return decode(e.value)
}

func (m *Memory) SetPending(ctx context.Context, userID int64, p entity.PendingChallenge) (err error) {
	_, span := startSpan(ctx, m.ins, "SetPending")
	defer func() { endSpan(span, err) }()

	b, err := encode(p)
	if err != nil {
		return err
	}

	m.lru.Add(pendingKey(userID), memoryEntry{value: b, expiresAt: m.clock.Now().Add(m.ttl)})
	return nil
}

func (m *Memory) DeletePending(ctx context.Context, userID int64) (err error) {
	_, span := startSpan(ctx, m.ins, "DeletePending")
	defer func() { endSpan(span, err) }()

	m.lru.Remove(pendingKey(userID))
	return nil
}
