// Package server assembles the Fiber application.
package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"

	"inboxai/handlers/api"
	"inboxai/handlers/web"
	"inboxai/internal/assist"
	"inboxai/internal/render"
	"inboxai/internal/server/middleware"
	"inboxai/views"
)

// Options holds the knobs the server reads from configuration.
type Options struct {
	JWTSecret        string
	TokenTTL         time.Duration
	BodyLimit        int
	AllowOrigins     string
	ProxyHeader      string
	TrustedProxies   []string
	MaxLoginAttempts int
	RateLimitWindow  time.Duration
	AccessLog        bool
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Sessions  *session.Store
	Auth      web.Authenticator
	Mailboxes api.Mailboxes
	Renderer  *render.Renderer
	Assistant *assist.Assistant
	Logger    *slog.Logger
	// Views defaults to the embedded templates.
	Views fiber.Views
}

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}

	// Check for HTMX request first
	if c.Get("HX-Request") != "" {
		return true
	}

	return strings.HasPrefix(c.Path(), "/api")
}

// errorHandler answers JSON for API and HTMX calls and renders the error
// page otherwise.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := api.StatusFor(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "err", err)
		}

		if isAPIRequest(c) {
			return c.Status(code).JSON(api.ErrorBody(err, code))
		}

		msg := err.Error()
		if e, ok := err.(*fiber.Error); ok {
			msg = e.Message
		}
		return c.Status(code).Render("error", fiber.Map{
			"Error": msg,
			"Code":  code,
		})
	}
}

// New builds the application with every route mounted.
func New(opts Options, d Deps) *fiber.App {
	if d.Views == nil {
		d.Views = views.Engine()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		Views:        d.Views,
		ViewsLayout:  "layouts/main",
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: errorHandler(d.Logger),
		// The proxy header is believed only from trusted peers.
		ProxyHeader:             opts.ProxyHeader,
		EnableTrustedProxyCheck: opts.ProxyHeader != "",
		TrustedProxies:          opts.TrustedProxies,
		EnableIPValidation:      true,
	})

	metrics := middleware.NewMetrics()

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(metrics.Track())
	app.Use(middleware.SecurityHeaders())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/metrics", func(c *fiber.Ctx) error {
		return c.JSON(metrics.GetMetrics())
	})

	authHandler := web.NewAuthHandler(d.Sessions, d.Auth, d.Mailboxes, opts.JWTSecret, opts.TokenTTL, d.Logger)
	emailHandler := web.NewEmailHandler(d.Sessions, d.Mailboxes, d.Renderer, d.Assistant.Available(), d.Logger)
	apiHandler := api.NewHandler(d.Mailboxes, d.Renderer, d.Assistant, d.Logger)

	// Public routes
	app.Get("/login", authHandler.ShowLogin)
	app.Get("/logout", authHandler.HandleLogout)
	oauth := app.Group("/auth", middleware.NewLoginLimiter(opts.MaxLoginAttempts, opts.RateLimitWindow).Limit())
	oauth.Get("/google", authHandler.BeginGoogle)
	oauth.Get("/google/callback", authHandler.GoogleCallback)

	// API routes authenticate with the bearer token.
	apiRoutes := app.Group("/api",
		cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowHeaders: "Authorization, Content-Type, HX-Request, HX-Target, HX-Current-URL",
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		}),
		middleware.NoStore(),
		api.BearerMiddleware(opts.JWTSecret, d.Sessions),
	)
	apiHandler.Register(apiRoutes)

	// Pages and HTMX partials use the session cookie.
	sessionOnly := api.SessionMiddleware(d.Sessions)
	app.Get("/", sessionOnly, emailHandler.HandleInbox)
	app.Get("/inbox", sessionOnly, emailHandler.HandleInbox)

	htmx := app.Group("/htmx", sessionOnly)
	htmx.Get("/mailbox/:view", emailHandler.HandleMailbox)
	htmx.Get("/thread/:threadId", emailHandler.HandleThread)

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		if isAPIRequest(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Not Found",
			})
		}
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"Error": "Page not found",
			"Code":  fiber.StatusNotFound,
		})
	})

	return app
}
