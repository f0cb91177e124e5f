package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otplogin/outbound/sqlite"
	"github.com/shandysiswandi/otpgate/internal/pkg/dbmigrate"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// Migrate runs one goose command (up, down or status) against the database
// selected by the config file and writes the result to w.
func Migrate(ctx context.Context, configPath, command string, w io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	//nolint:errcheck // read only
	defer cfg.Close()

	dbs, err := openDatabases(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbs.close()

	provider, closeFn, err := dbs.migrator()
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	//nolint:errcheck // wrapper only
	defer closeFn()

	return dbmigrate.Run(ctx, provider, command, w)
}

type createUserInput struct {
	Username string `validate:"required,max=150,username"`
	Email    string `validate:"required,email"`
}

// CreateUser inserts an account into the login store. A zero ID is replaced
// with a snowflake id. The stored user is returned.
func CreateUser(ctx context.Context, configPath string, u entity.User) (entity.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)

	v, err := validator.NewV10Validator()
	if err != nil {
		return entity.User{}, err
	}
	if err := v.Validate(createUserInput{Username: u.Username, Email: u.Email}); err != nil {
		return entity.User{}, err
	}

	if u.ID == 0 {
		node, err := uid.NewSnowflake()
		if err != nil {
			return entity.User{}, err
		}
		u.ID = node.Generate()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return entity.User{}, err
	}
	//nolint:errcheck // read only
	defer cfg.Close()

	box, err := newSecretbox(cfg)
	if err != nil {
		return entity.User{}, err
	}

	dbs, err := openDatabases(ctx, cfg)
	if err != nil {
		return entity.User{}, err
	}
	defer dbs.close()

	ins := instrument.NewNoop()
	if dbs.lite != nil {
		err = sqlite.NewStore(dbs.lite, box, ins).CreateUser(ctx, u)
	} else {
		err = db.NewDB(dbs.pg, box, ins).CreateUser(ctx, u)
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}

	return u, nil
}
