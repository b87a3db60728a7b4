// Package app wires the gateway's components together.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ircgate/ircgate/internal/auth"
	"github.com/ircgate/ircgate/internal/config"
	"github.com/ircgate/ircgate/internal/gateway"
	"github.com/ircgate/ircgate/internal/history"
	"github.com/ircgate/ircgate/internal/remote"
	adminhttp "github.com/ircgate/ircgate/internal/transport/http"
	ircserver "github.com/ircgate/ircgate/internal/transport/irc"
)

// App owns every long-lived component of the gateway.
type App struct {
	cfg     config.Config
	log     *zerolog.Logger
	ircSrv  *ircserver.Server
	admin   *stdhttp.Server
	gateway *gateway.Gateway
	hist    *history.Store
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	creds, err := auth.LoadStore(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	logger.Info().Int("accounts", creds.Len()).Str("path", cfg.CredentialsPath).Msg("credentials loaded")

	var hist *history.Store
	if cfg.DatabasePath != "" {
		hist, err = history.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("history store opened")
	}

	connector := &remote.Dialer{
		URL:     cfg.RemoteURL,
		Timeout: cfg.RemoteCallTimeout,
		Log:     logger,
	}

	registry := gateway.NewRegistry()
	gw := gateway.New(registry, logger, cfg.MonitorInterval)

	ircSrv := ircserver.NewServer(ircserver.Config{
		Addr:           cfg.Addr,
		ServerName:     cfg.ServerName,
		ControlChannel: cfg.ControlChannel,
	}, creds, connector, registry, hist, logger)

	var admin *stdhttp.Server
	if cfg.AdminAddr != "" {
		admin = adminhttp.NewServer(adminhttp.ServerConfig{
			Addr:              cfg.AdminAddr,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			JWT: &auth.JWTConfig{
				Secret:   []byte(cfg.AdminSecret),
				Issuer:   "ircgate",
				Audience: "admin",
				TTL:      24 * time.Hour,
			},
		}, registry, hist, logger)
	}

	return &App{
		cfg:     cfg,
		log:     logger,
		ircSrv:  ircSrv,
		admin:   admin,
		gateway: gw,
		hist:    hist,
	}, nil
}

// Run starts every component and blocks until context cancellation or a
// fatal listener error.
func (a *App) Run(ctx context.Context) error {
	if err := a.ircSrv.Listen(); err != nil {
		a.cleanup()
		return err
	}

	serverErr := make(chan error, 2)

	go a.gateway.Run(ctx)

	go func() {
		serverErr <- a.ircSrv.Run(ctx)
	}()

	if a.admin != nil {
		go func() {
			a.log.Info().Str("addr", a.cfg.AdminAddr).Msg("admin api started")
			if err := a.admin.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if a.admin != nil {
			a.log.Info().Msg("shutting down admin api")
			if err := a.admin.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Msg("admin shutdown")
			}
		}
		a.cleanup()
		return nil
	}
}

// cleanup closes the history store and any remaining sessions.
func (a *App) cleanup() {
	for _, s := range a.gateway.Registry().Sessions() {
		if err := s.Close(); err != nil {
			a.log.Warn().Err(err).Str("account", s.Account()).Msg("failed to close session")
		}
	}
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close history store")
		} else {
			a.log.Info().Msg("history store closed")
		}
	}
}
