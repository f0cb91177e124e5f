package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type OTPGenerateInput struct {
	Username string `validate:"required,max=150,username"`
}

type OTPGenerateOutput struct {
	RequestID string
}

func (s *Usecase) OTPGenerate(ctx context.Context, in OTPGenerateInput) (*OTPGenerateOutput, error) {
	ctx, span := s.startSpan(ctx, "OTPGenerate")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "active user account not found", "username", in.Username)
		return nil, errNoActiveAccount()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by username", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	unlock := s.lockUser(ctx, user.ID)
	defer unlock()

	now := s.clock.Now()

	cached, err := s.repoCache.GetPending(ctx, user.ID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "failed to cache get pending challenge", "user_id", user.ID, "error", err)
	}

	var (
		pending        *entity.PendingChallenge
		lastNotifiedAt *time.Time
	)
	if cached != nil {
		lastNotifiedAt = cached.LastNotifiedAt
		pending, err = s.reusePending(ctx, user.ID, *cached, now)
		if err != nil {
			return nil, err
		}
	}

	if pending == nil {
		pending, err = s.mintChallenge(ctx, user, now)
		if err != nil {
			return nil, err
		}
		s.record(ctx, "minted")
	} else {
		s.record(ctx, "reused")
	}
	// the resend cooldown is per user, so it survives both reuse and re-mint
	pending.LastNotifiedAt = lastNotifiedAt

	// the record is committed; a caller that went away gets no delivery and no cache entry
	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "request canceled after challenge was stored", "user_id", user.ID, "request_id", pending.RecordID)
		return nil, errCanceled(err)
	}

	if pending.ShouldNotify(now, s.resendCooldown()) {
		s.notify(ctx, user, *pending)
		stamp := now
		pending.LastNotifiedAt = &stamp
	} else {
		slog.InfoContext(ctx, "otp delivery throttled", "user_id", user.ID, "last_notified_at", pending.LastNotifiedAt)
		s.record(ctx, "throttled")
	}

	if err := s.repoCache.SetPending(ctx, user.ID, *pending); err != nil {
		slog.ErrorContext(ctx, "failed to cache set pending challenge", "user_id", user.ID, "error", err)
	}

	return &OTPGenerateOutput{RequestID: pending.RecordID}, nil
}

// reusePending returns the cached challenge with its code re-derived from the
// record when the record is still live, or nil when a new one must be minted.
func (s *Usecase) reusePending(ctx context.Context, userID int64, cached entity.PendingChallenge, now time.Time) (*entity.PendingChallenge, error) {
	rec, err := s.repoDB.GetChallengeByID(ctx, cached.RecordID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "cached challenge has no record", "user_id", userID, "request_id", cached.RecordID)
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get challenge by id", "request_id", cached.RecordID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if rec.UserID != userID || !rec.Reusable(now) {
		return nil, nil
	}

	code, err := s.totp.GenerateCode(rec.Secret, rec.CreatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "request_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &entity.PendingChallenge{
		Code:      code,
		RecordID:  rec.ID,
		ValidTill: rec.ValidTill,
	}, nil
}

// mintChallenge derives the code for the TOTP window containing created_at;
// verify checks against that same window.
func (s *Usecase) mintChallenge(ctx context.Context, user *entity.User, now time.Time) (*entity.PendingChallenge, error) {
	// stores keep microseconds; the code must be reproducible from created_at
	now = now.UTC().Truncate(time.Microsecond)

	secret, _, err := s.totp.Generate(user.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp secret", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.totp.GenerateCode(secret, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	ch := entity.Challenge{
		ID:        s.uuid.Generate(),
		UserID:    user.ID,
		Secret:    secret,
		ValidTill: now.Add(s.validity()),
		CreatedAt: now,
	}
	if err := s.repoDB.CreateChallenge(ctx, ch); err != nil {
		slog.ErrorContext(ctx, "failed to repo create challenge", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &entity.PendingChallenge{
		Code:      code,
		RecordID:  ch.ID,
		ValidTill: ch.ValidTill,
	}, nil
}

// notify publishes the delivery in the background, detached from the request
// and bounded by the notify timeout.
func (s *Usecase) notify(ctx context.Context, user *entity.User, p entity.PendingChallenge) {
	evt := OTPDeliveryEvent{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		RequestID: p.RecordID,
		Code:      p.Code,
		ValidTill: p.ValidTill,
	}
	timeout := s.notifyTimeout()

	scheduled := s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.repoMessaging.PublishOTPDelivery(ctx, evt); err != nil {
			slog.ErrorContext(ctx, "failed to publish otp delivery", "user_id", evt.UserID, "request_id", evt.RequestID, "error", err)
			return nil
		}
		s.record(ctx, "notified")
		return nil
	})
	if !scheduled {
		slog.WarnContext(ctx, "otp delivery not scheduled", "user_id", user.ID, "request_id", p.RecordID)
	}
}

// lockUser serializes Generate per user when it can. Failing to lock is not
// fatal; the cache then behaves as last writer wins.
func (s *Usecase) lockUser(ctx context.Context, userID int64) func() {
	if s.locker == nil {
		return func() {}
	}

	release, err := s.locker.Acquire(ctx, "otplogin:generate:"+strconv.FormatInt(userID, 10), s.lockTTL())
	if err != nil {
		slog.WarnContext(ctx, "failed to acquire generate lock", "user_id", userID, "error", err)
		return func() {}
	}

	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "failed to release generate lock", "user_id", userID, "error", err)
		}
	}
}
