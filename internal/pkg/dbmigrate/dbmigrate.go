// Package dbmigrate runs embedded goose migrations through a goose.Provider,
// which keeps dialect and file system per store instead of in goose globals.
package dbmigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/pressly/goose/v3"
)

const (
	CommandUp     = "up"
	CommandDown   = "down"
	CommandStatus = "status"
)

// ErrUnknownCommand is returned by Run for anything but up, down, or status.
var ErrUnknownCommand = errors.New("dbmigrate: unknown command")

// New builds a provider for the migrations found at the root of fsys.
func New(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("dbmigrate: new provider: %w", err)
	}
	return p, nil
}

// Run executes command and writes one line per migration to w.
func Run(ctx context.Context, p *goose.Provider, command string, w io.Writer) error {
	switch command {
	case CommandUp:
		results, err := p.Up(ctx)
		for _, r := range results {
			writeResult(w, r)
		}
		return err

	case CommandDown:
		r, err := p.Down(ctx)
		if r != nil {
			writeResult(w, r)
		}
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil
		}
		return err

	case CommandStatus:
		statuses, err := p.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			//nolint:errcheck // console output
			fmt.Fprintf(w, "%-24s %s\n", applied, s.Source.Path)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func writeResult(w io.Writer, r *goose.MigrationResult) {
	if r.Error != nil {
		//nolint:errcheck // console output
		fmt.Fprintf(w, "FAIL %-5s %s: %v\n", r.Direction, r.Source.Path, r.Error)
		return
	}
	//nolint:errcheck // console output
	fmt.Fprintf(w, "OK   %-5s %s (%s)\n", r.Direction, r.Source.Path, r.Duration)
}
