package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type OTPVerifyInput struct {
	RequestID string `validate:"required,uuid"`
	OTP       string `validate:"required,otp"`
}

type OTPVerifyOutput struct {
	Access  string
	Refresh string
}

func (s *Usecase) OTPVerify(ctx context.Context, in OTPVerifyInput) (*OTPVerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "OTPVerify")
	defer span.End()

	in.RequestID = strings.TrimSpace(in.RequestID)
	in.OTP = strings.TrimSpace(in.OTP)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	now := s.clock.Now()

	// expired, already used and wrong code all look the same to the caller
	ch, err := s.repoDB.VerifyChallenge(ctx, in.RequestID, now, func(ch entity.Challenge) error {
		if ch.Verified || ch.Expired(now) {
			return errInvalidOTP()
		}
		// the code belongs to the TOTP window the challenge was created in,
		// not the current one; valid_till bounds its lifetime
		if !s.totp.Validate(in.OTP, ch.Secret, ch.CreatedAt) {
			return errInvalidOTP()
		}
		return nil
	})
	switch {
	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "challenge not found", "request_id", in.RequestID)
		return nil, errChallengeNotFound()

	case errors.Is(err, goerror.ErrConflict):
		slog.WarnContext(ctx, "challenge verified concurrently", "request_id", in.RequestID)
		s.record(ctx, "rejected")
		return nil, errInvalidOTP()

	case goerror.ReasonOf(err) == ReasonInvalidOTP:
		slog.WarnContext(ctx, "otp rejected", "request_id", in.RequestID)
		s.record(ctx, "rejected")
		return nil, err

	case err != nil:
		slog.ErrorContext(ctx, "failed to repo verify challenge", "request_id", in.RequestID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.record(ctx, "verified")

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "request canceled after challenge was verified", "request_id", ch.ID)
		return nil, errCanceled(err)
	}

	if err := s.repoCache.DeletePending(ctx, ch.UserID); err != nil {
		slog.ErrorContext(ctx, "failed to cache delete pending challenge", "user_id", ch.UserID, "error", err)
	}

	user, err := s.repoDB.GetUserByID(ctx, ch.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user deactivated during login", "user_id", ch.UserID)
		return nil, errNoActiveAccount()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", ch.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	pair, err := s.issueFor(ctx, *user)
	if err != nil {
		return nil, err
	}

	return &OTPVerifyOutput{Access: pair.Access, Refresh: pair.Refresh}, nil
}
