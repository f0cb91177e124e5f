package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/shandysiswandi/otpgate/internal/app"
	"github.com/shandysiswandi/otpgate/internal/otplogin/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/dbmigrate"
)

func main() {
	cmd := &cli.Command{
		Name:  "otpgate",
		Usage: "Two step login with one time codes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and consumers",
				Action: serve,
			},
			{
				Name:      "migrate",
				Usage:     "Apply, roll back or inspect database migrations",
				ArgsUsage: "up|down|status",
				Action:    migrate,
			},
			{
				Name:  "user",
				Usage: "Manage login accounts",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create an account that can request login codes",
						Flags: []cli.Flag{
							&cli.Int64Flag{Name: "id", Usage: "Account id, generated when zero"},
							&cli.StringFlag{Name: "username", Required: true},
							&cli.StringFlag{Name: "email", Required: true},
							&cli.BoolFlag{Name: "inactive", Usage: "Create the account disabled"},
						},
						Action: createUser,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serve(_ context.Context, cmd *cli.Command) error {
	application := app.New(cmd.String("config"))
	wait := application.Start()
	<-wait

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx)

	return nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	command := cmd.Args().First()
	if command == "" {
		command = dbmigrate.CommandUp
	}

	return app.Migrate(ctx, cmd.String("config"), command, os.Stdout)
}

func createUser(ctx context.Context, cmd *cli.Command) error {
	u, err := app.CreateUser(ctx, cmd.String("config"), entity.User{
		ID:       cmd.Int64("id"),
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Active:   !cmd.Bool("inactive"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "created user id=%d username=%s active=%t\n", u.ID, u.Username, u.Active)
	return nil
}
