package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/mailotp/internal/verification"
)

func (a *App) initModules() {
	if err := verification.New(verification.Dependency{
		Ctx:        a.ctx,
		Goroutine:  a.goroutine,
		Router:     a.router,
		Mail:       a.mail,
		Messaging:  a.messaging,
		Config:     a.config,
		Instrument: a.ins,
		UUID:       a.uuid,
		Clock:      a.clock,
		Validator:  a.validator,
		CacheConn:  a.cacheConn,
	}); err != nil {
		slog.Error("failed to init module verification", "error", err)
		os.Exit(1)
	}
}
