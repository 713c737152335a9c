// Package main is the entrypoint for the Boardkit API server.
package main

import (
	"context"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/boardkit/boardkit/internal/audit"
	"github.com/boardkit/boardkit/internal/auth"
	"github.com/boardkit/boardkit/internal/authz"
	"github.com/boardkit/boardkit/internal/cache"
	"github.com/boardkit/boardkit/internal/config"
	"github.com/boardkit/boardkit/internal/csrf"
	"github.com/boardkit/boardkit/internal/handler"
	"github.com/boardkit/boardkit/internal/metrics"
	"github.com/boardkit/boardkit/internal/middleware"
	"github.com/boardkit/boardkit/internal/model"
	"github.com/boardkit/boardkit/internal/ratelimit"
	"github.com/boardkit/boardkit/internal/repository"
	"github.com/boardkit/boardkit/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Cache is optional. Without it the rate limiter runs in-process
	// and the audit stream is disabled.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis, continuing without cache",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			cacheClient = nil
		} else {
			defer cacheClient.Close()
			logger.Info("connected to Redis")
		}
	} else {
		logger.Warn("REDIS_URL not set, running without cache")
	}

	// Core services
	tokens, err := auth.NewTokenService([]byte(cfg.SessionSecret), cfg.SessionTTL)
	if err != nil {
		logger.Error("failed to initialize token service", "error", err)
		os.Exit(1)
	}
	csrfGuard := csrf.NewGuard([]byte(cfg.SessionSecret), cfg.CSRFTokenTTL)

	var matchCache auth.MatchCache
	if cacheClient != nil {
		matchCache = cacheClient
	}
	resolver := auth.NewResolver(repo, repo, tokens, matchCache)
	engine := authz.NewEngine(membershipStore{repo: repo})

	metricsRecorder := metrics.NewNoop()
	limiter := ratelimit.New(ratelimit.Config{
		Window: cfg.RateLimitWindow,
		Limit:  cfg.RateLimitMax,
	}, cacheClient, logger)

	eventsRepo := repository.NewAuthEventRepository(repo)

	// Audit pipeline rides on Redis streams; skip it in cacheless mode.
	var reporter middleware.AuthReporter
	var auditWorker *audit.Worker
	if cacheClient != nil && cfg.AuditWorkerEnabled {
		reporter = audit.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
		auditWorker = audit.NewWorker(cacheClient.Client(), eventsRepo, repo, logger, audit.NewConsumerID(), metricsRecorder)
	}

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, healthChecker(cacheClient))
	authHandler := handler.NewAuthHandler(logger, repo, tokens, csrfGuard, cfg.IsProduction())
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)
	groupHandler := handler.NewGroupHandler(logger, repo, engine)
	boardHandler := handler.NewBoardHandler(logger, repo, engine)
	adminHandler := handler.NewAdminHandler(logger, repo, eventsRepo)

	r := setupRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		metrics:  metricsRecorder,
		resolver: resolver,
		limiter:  limiter,
		csrf:     csrfGuard,
		reporter: reporter,
		health:   healthHandler,
		auth:     authHandler,
		apiKeys:  apiKeyHandler,
		groups:   groupHandler,
		boards:   boardHandler,
		admin:    adminHandler,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if auditWorker != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		defer cancelWorker()
		go func() {
			if err := auditWorker.Run(workerCtx); err != nil && err != context.Canceled {
				logger.Error("audit worker exited", "error", err)
			}
		}()
		srv.OnShutdown("audit_worker", auditWorker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// membershipStore adapts the repository to the authorization engine.
type membershipStore struct {
	repo *repository.Repository
}

func (s membershipStore) GetMembership(ctx context.Context, groupID, userID string) (*model.GroupMembership, error) {
	return s.repo.GetGroupMembership(ctx, groupID, userID)
}

// healthChecker avoids a typed-nil interface when the cache is absent.
func healthChecker(c *cache.Cache) handler.HealthChecker {
	if c == nil {
		return nil
	}
	return c
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything the router needs.
type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  metrics.Recorder
	resolver *auth.Resolver
	limiter  ratelimit.Limiter
	csrf     *csrf.Guard
	reporter middleware.AuthReporter
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	apiKeys  *handler.APIKeyHandler
	groups   *handler.GroupHandler
	boards   *handler.BoardHandler
	admin    *handler.AdminHandler
}

// setupRouter configures the chi router with all routes and middleware.
// For protected routes the chain runs CSRF, then rate limiting, then
// authentication: a cross-site request is rejected before it burns
// rate-limit budget, and rate limiting applies before any credential
// is verified.
func setupRouter(deps routerDeps) *chi.Mux {
	cfg := deps.cfg
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.ClientIP(parseTrustedProxies(cfg.GetTrustedProxies(), deps.logger)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth, no rate limit)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	csrfCfg := middleware.CSRFConfig{
		Logger:      deps.logger,
		Guard:       deps.csrf,
		Metrics:     deps.metrics,
		ExemptPaths: cfg.GetCSRFExemptPaths(),
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  deps.logger,
		Limiter: deps.limiter,
		Metrics: deps.metrics,
		Enabled: cfg.RateLimitEnabled,
	}
	authCfg := middleware.AuthConfig{
		Logger:   deps.logger,
		Resolver: deps.resolver,
		Metrics:  deps.metrics,
		Reporter: deps.reporter,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.CSRF(csrfCfg))
		r.Use(middleware.RateLimit(rateLimitCfg))

		// Account endpoints reachable without a credential
		r.Post("/auth/register", deps.auth.Register)
		r.Post("/auth/login", deps.auth.Login)

		// Everything else requires authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			r.Post("/auth/logout", deps.auth.Logout)
			r.Get("/auth/me", deps.auth.Me)

			// API key management. Session principals carry full user
			// authority; API-key principals need the admin scope to
			// manage keys so a leaked narrow key cannot mint new ones.
			r.Route("/api-keys", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", deps.apiKeys.ListAPIKeys)
				r.With(middleware.RequireScope(model.ScopeAdmin)).Post("/", deps.apiKeys.CreateAPIKey)
				r.With(middleware.RequireScope(model.ScopeAdmin)).Delete("/{keyID}", deps.apiKeys.RevokeAPIKey)
				r.With(middleware.RequireScope(model.ScopeAdmin)).Post("/{keyID}/rotate", deps.apiKeys.RotateAPIKey)
			})

			r.Route("/groups", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", deps.groups.ListGroups)
				r.With(middleware.RequireRead()).Get("/{groupID}", deps.groups.GetGroup)
				r.With(middleware.RequireWrite()).Post("/", deps.groups.CreateGroup)
				r.With(middleware.RequireWrite()).Delete("/{groupID}", deps.groups.DeleteGroup)
				r.With(middleware.RequireWrite()).Post("/{groupID}/members", deps.groups.AddMember)
				r.With(middleware.RequireWrite()).Patch("/{groupID}/members/{userID}", deps.groups.UpdateMemberRole)
				r.With(middleware.RequireWrite()).Delete("/{groupID}/members/{userID}", deps.groups.RemoveMember)
			})

			r.Route("/boards", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", deps.boards.ListBoards)
				r.With(middleware.RequireRead()).Get("/{boardID}", deps.boards.GetBoard)
				r.With(middleware.RequireWrite()).Post("/", deps.boards.CreateBoard)
				r.With(middleware.RequireWrite()).Patch("/{boardID}", deps.boards.UpdateBoard)
				r.With(middleware.RequireWrite()).Delete("/{boardID}", deps.boards.DeleteBoard)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())
				r.Get("/users", deps.admin.ListUsers)
				r.Post("/users/{userID}/activate", deps.admin.SetUserActive(true))
				r.Post("/users/{userID}/deactivate", deps.admin.SetUserActive(false))
				r.Patch("/users/{userID}/admin", deps.admin.SetUserAdmin)
				r.Get("/auth-events", deps.admin.ListAuthEvents)
			})
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

// parseTrustedProxies parses CIDR ranges, accepting bare addresses as
// single-host prefixes. Invalid entries are logged and skipped.
func parseTrustedProxies(entries []string, logger *slog.Logger) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix)
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		logger.Warn("ignoring invalid trusted proxy entry", "entry", entry)
	}
	return prefixes
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
