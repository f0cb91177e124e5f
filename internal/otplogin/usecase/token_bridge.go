package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

type TokenRefreshInput struct {
	Refresh string `validate:"required"`
}

type TokenRefreshOutput struct {
	Access string
}

// issueFor signs a fresh access and refresh token for user. Signing failures
// are not retried.
func (s *Usecase) issueFor(ctx context.Context, user entity.User) (entity.TokenPair, error) {
	access, err := s.jwt.Issue(jwt.KindAccess, user.ID, user.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue access token", "user_id", user.ID, "error", err)
		return entity.TokenPair{}, goerror.NewServer(err)
	}

	refresh, err := s.jwt.Issue(jwt.KindRefresh, user.ID, user.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue refresh token", "user_id", user.ID, "error", err)
		return entity.TokenPair{}, goerror.NewServer(err)
	}

	return entity.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Usecase) TokenRefresh(ctx context.Context, in TokenRefreshInput) (*TokenRefreshOutput, error) {
	ctx, span := s.startSpan(ctx, "TokenRefresh")
	defer span.End()

	in.Refresh = strings.TrimSpace(in.Refresh)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	claims, err := s.jwt.Verify(in.Refresh, jwt.KindRefresh)
	if err != nil {
		slog.WarnContext(ctx, "refresh token rejected", "error", err)
		return nil, errRefreshNotValid(err)
	}

	access, err := s.jwt.Issue(jwt.KindAccess, claims.UserID, claims.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue access token", "user_id", claims.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &TokenRefreshOutput{Access: access}, nil
}
