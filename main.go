package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"

	"inboxai/config"
	"inboxai/handlers/api"
	"inboxai/internal/assist"
	"inboxai/internal/auth"
	"inboxai/internal/crypto"
	"inboxai/internal/gmail"
	"inboxai/internal/mailbox"
	"inboxai/internal/render"
	"inboxai/internal/server"
	"inboxai/internal/store"
	"inboxai/storage"
)

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sealer, err := crypto.NewManager(cfg.Security.EncryptionKey)
	if err != nil {
		return err
	}

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Google.Issuer, cfg.Google.ClientID)
	if err != nil {
		return err
	}
	authManager := auth.NewManager(auth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	}, verifier, db, sealer, logger.With("component", "auth"))

	var gen assist.Generator
	if cfg.AI.APIKey != "" {
		g, err := assist.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return err
		}
		gen = g
	} else {
		logger.Warn("no AI api key configured, assistant disabled")
	}
	assistant := assist.New(gen, cfg.AI.Timeout.Duration, logger.With("component", "assist"))

	mailboxLogger := logger.With("component", "mailbox")
	registry := mailbox.NewRegistry(func(ctx context.Context, email string) (*mailbox.State, error) {
		ts, err := authManager.TokenSource(ctx, email)
		if err != nil {
			return nil, err
		}
		client, err := gmail.New(context.WithoutCancel(ctx), ts,
			gmail.WithPageSize(int(cfg.Mailbox.PageSize)),
			gmail.WithConcurrency(cfg.Mailbox.ListConcurrency),
			gmail.WithLogger(logger.With("component", "gmail", "user", email)),
		)
		if err != nil {
			return nil, err
		}
		return mailbox.New(client,
			mailbox.WithLogger(mailboxLogger.With("user", email)),
			mailbox.WithPrefetchRate(cfg.Mailbox.PrefetchInterval.Duration, cfg.Mailbox.PrefetchBurst),
			mailbox.WithBulkConcurrency(cfg.Mailbox.BulkConcurrency),
			mailbox.WithPageCache(cfg.Mailbox.PageCache),
			mailbox.WithAbortOn(api.NeedsReauth),
		), nil
	})

	sessionStorage := storage.NewSQLStorage(db, time.Hour, logger.With("component", "sessions"))
	defer sessionStorage.Close()
	sessions := session.New(session.Config{
		Storage:        sessionStorage,
		Expiration:     cfg.Security.SessionTimeout.Duration,
		CookieSecure:   cfg.Server.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})

	app := server.New(server.Options{
		JWTSecret:        cfg.Security.JWTSecret,
		TokenTTL:         cfg.Security.TokenTTL.Duration,
		BodyLimit:        cfg.Server.BodyLimit,
		AllowOrigins:     cfg.Server.AllowOrigins,
		ProxyHeader:      cfg.Server.ProxyHeader,
		TrustedProxies:   cfg.Server.TrustedProxies,
		MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		RateLimitWindow:  cfg.Security.RateLimitWindow.Duration,
		AccessLog:        true,
	}, server.Deps{
		Sessions:  sessions,
		Auth:      authManager,
		Mailboxes: registry,
		Renderer:  render.NewRenderer(logger.With("component", "render")),
		Assistant: assistant,
		Logger:    logger,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("server is starting", "addr", cfg.Addr())
		errc <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("server is shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
