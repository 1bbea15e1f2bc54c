// Package app ties configuration, logging and the server loop together
// for embedding in a main package.
package app

import (
	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/config"
	"github.com/searchktools/swerve/core"
	"github.com/searchktools/swerve/core/router"
	"github.com/searchktools/swerve/logger"
)

// App is the application instance.
type App struct {
	cfg    *config.Config
	log    zerolog.Logger
	server *core.Server
}

// New creates an application instance with a logger built from cfg.
func New(cfg *config.Config) *App {
	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: true,
	})

	return &App{
		cfg:    cfg,
		log:    log,
		server: core.NewServer(cfg, log),
	}
}

// Router returns the routing engine for route and middleware registration.
// Registration must finish before Run.
func (a *App) Router() *router.Router {
	return a.server.Router()
}

// Server returns the underlying server.
func (a *App) Server() *core.Server {
	return a.server
}

// Log returns the application logger.
func (a *App) Log() zerolog.Logger {
	return a.log
}

// Run starts the accept loop and blocks until a signal stops it. A bind or
// listen failure is fatal.
func (a *App) Run() {
	a.log.Info().Str("host", a.cfg.Host).Int("port", a.cfg.Port).Msg("server starting")
	if err := a.server.Run(); err != nil {
		a.log.Fatal().Err(err).Msg("server startup failed")
	}
}
