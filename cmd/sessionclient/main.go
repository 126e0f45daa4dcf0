package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-tenant-session/identity/client"
	"github.com/jrsteele09/go-tenant-session/internal/config"
	"github.com/jrsteele09/go-tenant-session/kvstore/memstore"
	"github.com/jrsteele09/go-tenant-session/kvstore/sqlitestore"
	"github.com/jrsteele09/go-tenant-session/tenantsession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	userID     string
	userEmail  string
	tenantID   string
	tenantSlug string
	target     string
	signOut    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.userID, "user", "", "user ID")
	flag.StringVar(&opts.userEmail, "email", "", "user email")
	flag.StringVar(&opts.tenantID, "tenant-id", "", "tenant ID (optional, resolved by the identity service)")
	flag.StringVar(&opts.tenantSlug, "tenant", "", "tenant slug")
	flag.StringVar(&opts.target, "get", "", "URL to call with the tenant session attached")
	flag.BoolVar(&opts.signOut, "signout", false, "revoke the tenant session and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Error().Err(err).Msg("session client failed")
		os.Exit(1)
	}
}

func run(opts options) error {
	c := config.New()
	setupLogger(c.GetEnv())

	if opts.userID == "" || opts.tenantSlug == "" {
		return fmt.Errorf("-user and -tenant are required")
	}

	if err := os.MkdirAll(c.GetDataFolder(), 0o750); err != nil {
		return fmt.Errorf("create data folder: %w", err)
	}
	sessions, err := sqlitestore.New(filepath.Join(c.GetDataFolder(), "tenant_sessions.db"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessions.Close()

	// One process is one tab: the pointer to the active tenant does not outlive it.
	store, err := tenantsession.New(sessions, memstore.New(), client.New(c.GetIdentityBaseURL()),
		tenantsession.WithConfig(c),
		tenantsession.WithLogger(log.Logger),
	)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if opts.signOut {
		store.Revoke(ctx, opts.userID, opts.userEmail, opts.tenantSlug)
		log.Info().Str("tenant_slug", opts.tenantSlug).Msg("signed out")
		return nil
	}

	rec, err := store.EnsureAccess(ctx, opts.userID, opts.userEmail, opts.tenantSlug)
	if err != nil {
		return fmt.Errorf("ensure access: %w", err)
	}
	if rec == nil {
		if _, err := store.CreateSession(ctx, opts.tenantID, opts.tenantSlug, opts.userID, opts.userEmail); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if !store.Activate(opts.userID, opts.tenantSlug) {
			return fmt.Errorf("activate %s: session vanished", opts.tenantSlug)
		}
	}

	for _, r := range store.Records(opts.userID) {
		log.Info().Str("tenant_slug", r.TenantSlug).Time("last_access", time.UnixMilli(r.LastAccess)).
			Time("expires_at", time.UnixMilli(r.ExpiresAt)).Msg("session")
	}

	if opts.target == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := store.Client().Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", opts.target, err)
	}
	defer resp.Body.Close()
	log.Info().Str("url", opts.target).Int("status", resp.StatusCode).Msg("response")
	return nil
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
