package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
)

type mockRepoDB struct {
	mock.Mock
}

func (m *mockRepoDB) GetUserByUsername(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

func (m *mockRepoDB) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

func (m *mockRepoDB) CreateChallenge(ctx context.Context, ch entity.Challenge) error {
	return m.Called(ctx, ch).Error(0)
}

func (m *mockRepoDB) GetChallengeByID(ctx context.Context, id string) (*entity.Challenge, error) {
	args := m.Called(ctx, id)
	ch, _ := args.Get(0).(*entity.Challenge)
	return ch, args.Error(1)
}

// VerifyChallenge runs check against the returned challenge the way a store
// does inside its transaction.
func (m *mockRepoDB) VerifyChallenge(ctx context.Context, id string, at time.Time, check func(entity.Challenge) error) (*entity.Challenge, error) {
	args := m.Called(ctx, id, at)
	if err := args.Error(1); err != nil {
		return nil, err
	}

	ch, _ := args.Get(0).(*entity.Challenge)
	if err := check(*ch); err != nil {
		return nil, err
	}

	out := *ch
	out.Verified = true
	out.UpdatedAt = at
	return &out, nil
}

type mockRepoCache struct {
	mock.Mock
}

func (m *mockRepoCache) GetPending(ctx context.Context, userID int64) (*entity.PendingChallenge, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*entity.PendingChallenge)
	return p, args.Error(1)
}

func (m *mockRepoCache) SetPending(ctx context.Context, userID int64, p entity.PendingChallenge) error {
	return m.Called(ctx, userID, p).Error(0)
}

func (m *mockRepoCache) DeletePending(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

// recordingMessaging captures published deliveries; publishing happens on a
// background goroutine so tests poll it.
type recordingMessaging struct {
	mu     sync.Mutex
	events []OTPDeliveryEvent
	err    error
}

func (r *recordingMessaging) PublishOTPDelivery(_ context.Context, msg OTPDeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, msg)
	return nil
}

func (r *recordingMessaging) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingMessaging) last() OTPDeliveryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
