package sqlite

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
)

type userRow struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
	Active   bool   `db:"active"`
}

func (r userRow) toEntity() *entity.User {
	return &entity.User{ID: r.ID, Username: r.Username, Email: r.Email, Active: r.Active}
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByUsername")
	defer func() { s.endSpan(span, err) }()

	var row userRow
	if err = s.db.GetContext(ctx, &row,
		`SELECT id, username, email, active FROM otplogin_users WHERE username = ? AND active = 1`,
		username,
	); err != nil {
		return nil, s.mapError(err)
	}

	return row.toEntity(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	var row userRow
	if err = s.db.GetContext(ctx, &row,
		`SELECT id, username, email, active FROM otplogin_users WHERE id = ? AND active = 1`,
		id,
	); err != nil {
		return nil, s.mapError(err)
	}

	return row.toEntity(), nil
}

func (s *Store) CreateUser(ctx context.Context, u entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO otplogin_users (id, username, email, active) VALUES (:id, :username, :email, :active)`,
		userRow{ID: u.ID, Username: u.Username, Email: u.Email, Active: u.Active},
	)
	return s.mapError(err)
}
