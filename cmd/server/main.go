package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-tenant-session/audit"
	"github.com/jrsteele09/go-tenant-session/identity"
	"github.com/jrsteele09/go-tenant-session/internal/config"
	"github.com/jrsteele09/go-tenant-session/kvstore/sqlitestore"
	"github.com/jrsteele09/go-tenant-session/server"
	tenantrepofakes "github.com/jrsteele09/go-tenant-session/tenants/repofakes"
	"github.com/jrsteele09/go-tenant-session/token"
	"github.com/jrsteele09/go-tenant-session/token/refresh"
	refreshkvrepo "github.com/jrsteele09/go-tenant-session/token/refresh/kvrepo"
	fakeuserrepo "github.com/jrsteele09/go-tenant-session/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const revokedTokenCleanupInterval = 10 * time.Minute

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogger(c.GetEnv())
	displayAppname(c.GetAppName())

	if err := os.MkdirAll(c.GetDataFolder(), 0o750); err != nil {
		return fmt.Errorf("create data folder: %w", err)
	}
	tokenStore, err := sqlitestore.New(filepath.Join(c.GetDataFolder(), "refresh_tokens.db"))
	if err != nil {
		return fmt.Errorf("open refresh token store: %w", err)
	}
	defer tokenStore.Close()

	repos := identity.Repos{
		Users:   fakeuserrepo.NewFakeUserRepo(),
		Tenants: tenantrepofakes.NewFakeTenantRepo(),
	}
	tokens := token.New(token.NewHMACSigner(c.GetSigningSecret()), token.WithAccessTokenExpiry(c.GetAccessTokenExpiry()))
	refreshTokens := refresh.NewManager(refreshkvrepo.New(tokenStore), c.GetRefreshTokenLength(), c.GetRefreshTokenExpiry())

	service, err := identity.NewService(repos, tokens, refreshTokens,
		identity.WithAuditSink(audit.NewLogSink(log.Logger)),
		identity.WithRotation(c.GetRotateRefreshTokens()),
	)
	if err != nil {
		return fmt.Errorf("create identity service: %w", err)
	}

	handler, err := server.New(c, repos, service, server.WithLogger(log.Logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupRevokedTokens(ctx, tokens)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogger(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func cleanupRevokedTokens(ctx context.Context, tokens *token.Manager) {
	ticker := time.NewTicker(revokedTokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens.CleanupRevokedTokens()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
