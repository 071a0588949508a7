// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/gestororion/orion/internal/audit"
	"github.com/gestororion/orion/internal/auth"
	"github.com/gestororion/orion/internal/client"
	"github.com/gestororion/orion/internal/config"
	"github.com/gestororion/orion/internal/dashboard"
	"github.com/gestororion/orion/internal/finance"
	"github.com/gestororion/orion/internal/health"
	"github.com/gestororion/orion/internal/identity"
	"github.com/gestororion/orion/internal/license"
	"github.com/gestororion/orion/internal/logging"
	"github.com/gestororion/orion/internal/metrics"
	"github.com/gestororion/orion/internal/pagination"
	"github.com/gestororion/orion/internal/panelserver"
	"github.com/gestororion/orion/internal/ratelimit"
	"github.com/gestororion/orion/internal/renewal"
	"github.com/gestororion/orion/internal/reseller"
	"github.com/gestororion/orion/internal/security"
	"github.com/gestororion/orion/internal/sweep"
	"github.com/gestororion/orion/internal/tenant"
	"github.com/gestororion/orion/internal/traces"
	"github.com/gestororion/orion/internal/user"
	"github.com/gestororion/orion/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg       *config.Config
	users     *user.Service
	authMgr   *auth.Manager
	tenants   *tenant.Service
	gate      *license.Gate
	clients   *client.Service
	resellers *reseller.Service
	servers   *panelserver.Service
	renewals  *renewal.Service
	reports   *finance.Aggregator
	audits    *audit.Recorder
	resolver  *identity.Resolver
	sweeper   *sweep.Sweeper
	checks    *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	rateLimiter  *ratelimit.Limiter
	logger       *slog.Logger
	stopTraces   func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := logging.WithLogger(context.Background(), s.logger)

	var (
		userStore     user.Store
		sessionStore  auth.SessionStore
		tenantStore   tenant.Store
		clientStore   client.Store
		resellerStore reseller.Store
		serverStore   panelserver.Store
		renewalStore  renewal.Store
		auditStore    audit.Store
	)

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		uStore := user.NewPostgresStore(db)
		sStore := auth.NewPostgresSessionStore(db)
		tStore := tenant.NewPostgresStore(db)
		cStore := client.NewPostgresStore(db)
		rStore := reseller.NewPostgresStore(db)
		pStore := panelserver.NewPostgresStore(db)
		nStore := renewal.NewPostgresStore(db)
		aStore := audit.NewPostgresStore(db)

		// Schema drift is normally handled by cmd/migrate; the in-place
		// Migrate calls keep a fresh database usable without it.
		migrators := []struct {
			name string
			m    interface {
				Migrate(context.Context) error
			}
		}{
			{"tenants", tStore},
			{"users", uStore},
			{"sessions", sStore},
			{"clients", cStore},
			{"resellers", rStore},
			{"panel_servers", pStore},
			{"renewals", nStore},
			{"audit", aStore},
		}
		for _, mg := range migrators {
			if err := mg.m.Migrate(ctx); err != nil {
				s.logger.Warn("failed to migrate store", "store", mg.name, "error", err)
			}
		}

		userStore, sessionStore, tenantStore = uStore, sStore, tStore
		clientStore, resellerStore, serverStore = cStore, rStore, pStore
		renewalStore, auditStore = nStore, aStore
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		userStore = user.NewMemoryStore()
		sessionStore = auth.NewMemorySessionStore()
		tenantStore = tenant.NewMemoryStore()
		clientStore = client.NewMemoryStore()
		resellerStore = reseller.NewMemoryStore()
		serverStore = panelserver.NewMemoryStore()
		renewalStore = renewal.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
	}

	s.users = user.NewService(userStore)
	s.authMgr = auth.NewManager(sessionStore, s.users, cfg.SessionTTL)
	s.gate = license.NewGate(tenantStore, cfg.LicenseCacheTTL)
	s.tenants = tenant.NewService(tenantStore, s.users, s.gate)
	s.clients = client.NewService(clientStore)
	s.resellers = reseller.NewService(resellerStore)
	s.servers = panelserver.NewService(serverStore)
	s.renewals = renewal.NewService(renewalStore, userStore, clientStore, renewal.BillingConfig{
		OnboardingFee:  cfg.OnboardingFee,
		PricePerClient: cfg.PricePerClient,
	})
	s.reports = finance.NewAggregator(resellerStore, clientStore)
	s.audits = audit.NewRecorder(auditStore)
	s.resolver = identity.NewResolver(userStore)
	s.sweeper = sweep.New(clientStore, resellerStore, s.authMgr, s.audits)

	s.checks = health.NewRegistry()
	s.checks.Register("database", func(ctx context.Context) health.Status {
		if s.db == nil {
			return health.Status{Name: "database", Healthy: true, Detail: "in-memory"}
		}
		if err := s.db.PingContext(ctx); err != nil {
			return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "database", Healthy: true}
	})

	// The master account must exist before anyone can log in.
	master, err := s.users.EnsureMaster(ctx, cfg.MasterUsername, cfg.MasterPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to provision master account: %w", err)
	}
	s.logger.Info("master account ready", "username", master.Username)

	// Tracing (no-op when no OTLP endpoint is configured)
	stop, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.stopTraces = stop
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS for the panel front-end
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	if s.cfg.RateLimitEnabled {
		s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
		s.router.Use(s.rateLimiter.Middleware())
	}

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/api", s.infoHandler)

	authHandler := auth.NewHandler(s.authMgr, s.users, s.cfg.SessionTTL, s.cfg.IsProduction())
	usersHandler := auth.NewUsersHandler(s.users, s.authMgr)
	tenantHandler := tenant.NewHandler(s.tenants)
	clientHandler := client.NewHandler(s.clients, s.resolver, s.audits)
	resellerHandler := reseller.NewHandler(s.resellers, s.resolver, s.audits)
	serverHandler := panelserver.NewHandler(s.servers, s.audits)
	financeHandler := finance.NewHandler(s.reports, s.resolver)
	renewalHandler := renewal.NewHandler(s.renewals, s.audits)
	dashboardHandler := dashboard.NewHandler(s.clients, s.resellers, s.tenants, s.resolver)

	v1 := s.router.Group("/v1")
	v1.Use(auth.Middleware(s.authMgr))

	// PUBLIC ROUTES (no session required). Credential endpoints get a
	// tighter rate limit than the rest of the API.
	public := v1.Group("")
	if s.cfg.RateLimitEnabled {
		public.Use(ratelimit.MiddlewareWithConfig(ratelimit.LoginConfig()))
	}
	authHandler.RegisterPublicRoutes(public)

	// PROTECTED ROUTES (live session, but no license check). Account
	// management and the renewal flow must stay reachable for accounts
	// whose license or panel plan has lapsed, otherwise nobody could
	// ever pay their way back in.
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	{
		authHandler.RegisterProtectedRoutes(protected)
		tenantHandler.RegisterTenantRoutes(protected)
		renewalHandler.RegisterRoutes(protected)
	}

	// LICENSED ROUTES (live session and a valid tenant license)
	licensed := protected.Group("")
	licensed.Use(license.Middleware(s.gate))
	{
		dashboardHandler.RegisterRoutes(licensed)
		clientHandler.RegisterRoutes(licensed)
		resellerHandler.RegisterRoutes(licensed)
		serverHandler.RegisterRoutes(licensed)
		financeHandler.RegisterRoutes(licensed)
		usersHandler.RegisterRoutes(licensed)
		licensed.GET("/audit", s.auditLogHandler)

		review := licensed.Group("")
		review.Use(auth.RequireRole(identity.RoleAdmin))
		renewalHandler.RegisterReviewRoutes(review)
	}

	// MASTER ROUTES (tenant administration)
	master := protected.Group("")
	master.Use(auth.RequireMaster())
	tenantHandler.RegisterMasterRoutes(master)
}

// auditLogHandler handles GET /v1/audit. Admins see their tenant's trail;
// master may pass ?tenant_id to narrow an all-tenant view.
func (s *Server) auditLogHandler(c *gin.Context) {
	id, _ := auth.CurrentIdentity(c)
	if !id.CanManage() {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "insufficient role",
		})
		return
	}

	tenantID := id.TenantID
	if id.IsMaster() {
		tenantID = c.Query("tenant_id")
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	entries, next, err := s.audits.List(c.Request.Context(), tenantID, c.Query("cursor"), limit)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "cursor is not valid",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "failed to load audit log",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":     entries,
		"count":       len(entries),
		"next_cursor": next,
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Orion",
		"description": "Multi-tenant back office for IPTV resale",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(logging.WithLogger(ctx, s.logger))
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start maintenance sweeps
	if s.cfg.SweepEnabled {
		if err := s.sweeper.Start(runCtx); err != nil {
			s.logger.Error("failed to start sweeper", "error", err)
		}
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	if s.cfg.SweepEnabled {
		s.sweeper.Stop()
		s.logger.Info("sweeper stopped")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.stopTraces != nil {
		if err := s.stopTraces(ctx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Users exposes the user service for test seeding.
func (s *Server) Users() *user.Service {
	return s.users
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
