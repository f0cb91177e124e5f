package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpgate/internal/notification"
	"github.com/shandysiswandi/otpgate/internal/otplogin"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.otplogin.enabled") {
		if err := otplogin.New(otplogin.Dependency{
			PGConn:     a.pgConn,
			SQLiteConn: a.sqliteConn,
			CacheConn:  a.cacheConn,
			Secretbox:  a.secretbox,
			Locker:     a.locker,
			Messaging:  a.messaging,
			Router:     a.router,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Totp:       a.totp,
			Validator:  a.validator,
			JWT:        a.jwt,
			Goroutine:  a.goroutine,
		}); err != nil {
			slog.Error("failed to init module otplogin", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
