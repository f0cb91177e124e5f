package db

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
)

const userColumns = `id, username, email, active`

func (s *DB) GetUserByUsername(ctx context.Context, username string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByUsername")
	defer func() { s.endSpan(span, err) }()

	var u entity.User
	err = s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM otplogin_users WHERE username = $1 AND active`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Active)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &u, nil
}

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	var u entity.User
	err = s.conn.QueryRow(ctx,
		`SELECT `+userColumns+` FROM otplogin_users WHERE id = $1 AND active`,
		id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Active)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &u, nil
}

func (s *DB) CreateUser(ctx context.Context, u entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`INSERT INTO otplogin_users (id, username, email, active) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.Email, u.Active,
	)
	return s.mapError(err)
}
