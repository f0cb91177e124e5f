package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const challengeColumns = `id, user_id, secret_sealed, valid_till, verified, created_at, updated_at`

func (s *DB) CreateChallenge(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := s.startSpan(ctx, "CreateChallenge")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.box.Seal([]byte(ch.Secret), ch.ID)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO otplogin_challenges (`+challengeColumns+`) VALUES ($1, $2, $3, $4, FALSE, $5, $5)`,
		ch.ID, ch.UserID, sealed, ch.ValidTill, ch.CreatedAt,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *DB) GetChallengeByID(ctx context.Context, id string) (_ *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "GetChallengeByID")
	defer func() { s.endSpan(span, err) }()

	row := s.conn.QueryRow(ctx, `SELECT `+challengeColumns+` FROM otplogin_challenges WHERE id = $1`, id)
	return s.scanChallenge(row)
}

// MarkChallengeVerified flips verified only if it is still false and returns
// goerror.ErrConflict otherwise.
func (s *DB) MarkChallengeVerified(ctx context.Context, id string, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "MarkChallengeVerified")
	defer func() { s.endSpan(span, err) }()

	return s.markVerified(ctx, s.conn, id, at)
}

// VerifyChallenge locks the row, runs check against it and marks it verified
// when check passes, all in one transaction.
func (s *DB) VerifyChallenge(ctx context.Context, id string, at time.Time, check func(entity.Challenge) error) (_ *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "VerifyChallenge")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rolback", "error", rErr)
		}
	}()

	ch, err := s.scanChallenge(tx.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM otplogin_challenges WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, err
	}

	if err := check(*ch); err != nil {
		return nil, err
	}

	if err := s.markVerified(ctx, tx, id, at); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, s.mapError(err)
	}

	ch.Verified = true
	ch.UpdatedAt = at
	return ch, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *DB) markVerified(ctx context.Context, ex execer, id string, at time.Time) error {
	tag, err := ex.Exec(ctx,
		`UPDATE otplogin_challenges SET verified = TRUE, updated_at = $2 WHERE id = $1 AND verified = FALSE`,
		id, at,
	)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}
	return nil
}

func (s *DB) scanChallenge(row pgx.Row) (*entity.Challenge, error) {
	var (
		ch     entity.Challenge
		sealed []byte
	)
	if err := row.Scan(&ch.ID, &ch.UserID, &sealed, &ch.ValidTill, &ch.Verified, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return nil, s.mapError(err)
	}

	secret, err := s.box.Open(sealed, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("open secret of challenge %s: %w", ch.ID, err)
	}
	ch.Secret = string(secret)

	return &ch, nil
}
