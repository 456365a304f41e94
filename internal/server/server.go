// Package server wires configuration, stores, and HTTP handlers into the
// running Pulseboard API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/pulseboard/pulseboard/internal/analytics"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/billing"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/idgen"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/org"
	"github.com/pulseboard/pulseboard/internal/payments"
	"github.com/pulseboard/pulseboard/internal/ratelimit"
	"github.com/pulseboard/pulseboard/internal/report"
	"github.com/pulseboard/pulseboard/internal/security"
	"github.com/pulseboard/pulseboard/internal/subscription"
	"github.com/pulseboard/pulseboard/internal/traces"
	"github.com/pulseboard/pulseboard/internal/usage"
	"github.com/pulseboard/pulseboard/internal/validation"
)

const reportQueueSize = 64

// Stores bundles the persistence layer behind one value so the server can
// run on PostgreSQL or fully in memory.
type Stores struct {
	Orgs      org.Store
	Users     auth.Store
	Customers customer.Store
	Subs      subscription.Store
	Txns      ledger.Store
	Events    usage.Store
	Reports   report.Store
}

// Server is the assembled API.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *gin.Engine
	db      *sql.DB
	limiter *ratelimit.Limiter
	reports *report.Generator
}

// New builds the server. When DATABASE_URL is unset everything runs on
// in-memory stores, which is enough for demos and tests.
func New(cfg *config.Config) (*Server, error) {
	logger := logging.New(cfg.LogLevel, logFormat(cfg))
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		db     *sql.DB
		stores Stores
		err    error
	)
	if cfg.DatabaseURL != "" {
		db, err = openDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		stores = Stores{
			Orgs:      org.NewPostgresStore(db),
			Users:     auth.NewPostgresStore(db),
			Customers: customer.NewPostgresStore(db),
			Subs:      subscription.NewPostgresStore(db),
			Txns:      ledger.NewPostgresStore(db),
			Events:    usage.NewPostgresStore(db),
			Reports:   report.NewPostgresStore(db),
		}
		logger.Info("using postgres stores")
	} else {
		stores = Stores{
			Orgs:      org.NewMemoryStore(),
			Users:     auth.NewMemoryStore(),
			Customers: customer.NewMemoryStore(),
			Subs:      subscription.NewMemoryStore(),
			Txns:      ledger.NewMemoryStore(),
			Events:    usage.NewMemoryStore(),
			Reports:   report.NewMemoryStore(),
		}
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPM,
		BurstSize:         cfg.RateLimitRPM / 10,
		CleanupInterval:   time.Minute,
	})

	lifecycle := billing.New(stores.Subs, stores.Txns)
	s.reports = report.NewGenerator(stores.Reports, stores.Customers, stores.Subs, stores.Txns, reportQueueSize)

	stripe := payments.NewClient(cfg.StripeAPIKey)
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	s.engine = s.buildRouter(stores, tokens, lifecycle, stripe)
	return s, nil
}

func (s *Server) buildRouter(stores Stores, tokens *auth.TokenManager, lifecycle *billing.Lifecycle, stripe *payments.Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(security.HeadersMiddleware())
	r.Use(security.CORSMiddleware([]string{s.cfg.FrontendURL}))
	r.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	r.Use(s.limiter.Middleware())
	r.Use(metrics.Middleware())

	r.GET("/health", s.health)
	r.GET("/health/live", s.health)
	r.GET("/health/ready", s.ready)
	r.GET("/metrics", metrics.Handler())

	authHandler := auth.NewHandler(stores.Users, tokens, &orgCreator{
		orgs:   stores.Orgs,
		stripe: stripe,
	})

	api := r.Group("/api")
	authHandler.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(auth.Middleware(tokens, stores.Users))
	authHandler.RegisterProtectedRoutes(protected)

	org.NewHandler(stores.Orgs).RegisterRoutes(protected)
	customer.NewHandler(stores.Customers, stores.Subs, stores.Events, lifecycle).RegisterRoutes(protected)
	subscription.NewHandler(stores.Subs, &customerDirectory{customers: stores.Customers}).RegisterRoutes(protected)
	ledger.NewHandler(stores.Txns, &subscriptionResolver{subs: stores.Subs}).RegisterRoutes(protected)
	usage.NewHandler(stores.Events, &activityRecorder{customers: stores.Customers}).RegisterRoutes(protected)
	analytics.NewHandler(analytics.NewService(stores.Customers, stores.Subs, stores.Txns, stores.Events)).RegisterRoutes(protected)
	report.NewHandler(stores.Reports, s.reports).RegisterRoutes(protected)

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	shutdownTraces, err := traces.Init(ctx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return err
	}

	s.reports.Start(ctx)
	if s.db != nil {
		go metrics.StartDBStatsCollector(ctx, s.db, 15*time.Second)
	}

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown failed", "error", err)
	}
	s.reports.Stop()
	s.limiter.Stop()
	if err := shutdownTraces(shutdownCtx); err != nil {
		s.logger.Error("trace shutdown failed", "error", err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("db close failed", "error", err)
		}
	}
	return nil
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"status": "ok"}})
}

func (s *Server) ready(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"status": "ready"}})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}
		c.Header("X-Request-ID", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func openDB(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func logFormat(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return "text"
	}
	return "json"
}
