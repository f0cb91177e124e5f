package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/vinovest/sqlx"
)

const selectChallenge = `SELECT id, user_id, secret_sealed, valid_till, verified, created_at, updated_at
FROM otplogin_challenges WHERE id = ?`

type challengeRow struct {
	ID           string `db:"id"`
	UserID       int64  `db:"user_id"`
	SecretSealed []byte `db:"secret_sealed"`
	ValidTill    int64  `db:"valid_till"`
	Verified     bool   `db:"verified"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (s *Store) CreateChallenge(ctx context.Context, ch entity.Challenge) (err error) {
	ctx, span := s.startSpan(ctx, "CreateChallenge")
	defer func() { s.endSpan(span, err) }()

	sealed, err := s.box.Seal([]byte(ch.Secret), ch.ID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO otplogin_challenges (id, user_id, secret_sealed, valid_till, verified, created_at, updated_at)
		VALUES (:id, :user_id, :secret_sealed, :valid_till, 0, :created_at, :updated_at)`,
		challengeRow{
			ID:           ch.ID,
			UserID:       ch.UserID,
			SecretSealed: sealed,
			ValidTill:    ch.ValidTill.UnixMicro(),
			CreatedAt:    ch.CreatedAt.UnixMicro(),
			UpdatedAt:    ch.CreatedAt.UnixMicro(),
		},
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *Store) GetChallengeByID(ctx context.Context, id string) (_ *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "GetChallengeByID")
	defer func() { s.endSpan(span, err) }()

	var row challengeRow
	if err = s.db.GetContext(ctx, &row, selectChallenge, id); err != nil {
		return nil, s.mapError(err)
	}

	return s.toEntity(row)
}

// MarkChallengeVerified flips verified only if it is still false and returns
// goerror.ErrConflict otherwise.
func (s *Store) MarkChallengeVerified(ctx context.Context, id string, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "MarkChallengeVerified")
	defer func() { s.endSpan(span, err) }()

	return s.markVerified(ctx, s.db, id, at)
}

// VerifyChallenge reads the row inside an immediate transaction, which holds
// the write lock, runs check, and marks it verified when check passes.
func (s *Store) VerifyChallenge(ctx context.Context, id string, at time.Time, check func(entity.Challenge) error) (_ *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "VerifyChallenge")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer s.rollback(ctx, tx)

	var row challengeRow
	if err = tx.GetContext(ctx, &row, selectChallenge, id); err != nil {
		return nil, s.mapError(err)
	}

	ch, err := s.toEntity(row)
	if err != nil {
		return nil, err
	}

	if err = check(*ch); err != nil {
		return nil, err
	}

	if err = s.markVerified(ctx, tx, id, at); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, s.mapError(err)
	}

	ch.Verified = true
	ch.UpdatedAt = at
	return ch, nil
}

func (s *Store) markVerified(ctx context.Context, ex sqlx.ExecerContext, id string, at time.Time) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE otplogin_challenges SET verified = 1, updated_at = ? WHERE id = ? AND verified = 0`,
		at.UnixMicro(), id,
	)
	if err != nil {
		return s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrConflict
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.ErrorContext(ctx, "failed to rolback", "error", err)
	}
}

func (s *Store) toEntity(row challengeRow) (*entity.Challenge, error) {
	secret, err := s.box.Open(row.SecretSealed, row.ID)
	if err != nil {
		return nil, fmt.Errorf("open secret of challenge %s: %w", row.ID, err)
	}

	return &entity.Challenge{
		ID:        row.ID,
		UserID:    row.UserID,
		Secret:    string(secret),
		ValidTill: time.UnixMicro(row.ValidTill).UTC(),
		Verified:  row.Verified,
		CreatedAt: time.UnixMicro(row.CreatedAt).UTC(),
		UpdatedAt: time.UnixMicro(row.UpdatedAt).UTC(),
	}, nil
}
