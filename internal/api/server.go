// Package api exposes the calculators, worklists and assessment history over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/internal/feed"
	"github.com/cardio-insights-server/internal/middleware"
	"github.com/cardio-insights-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	Calculators *service.CalculatorService
	Worklists   *service.WorklistService
	Feed        *feed.Hub
	Checks      map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config *domain.Config
	deps   Dependencies
	logger *logrus.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies, logger *logrus.Logger) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
		router: router,
	}
	s.setupRoutes()

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.deps.Feed != nil {
		s.deps.Feed.Close()
	}
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	// long-lived, so outside the request timeout
	if s.deps.Feed != nil {
		v1.GET("/feed", s.handleFeed)
	}

	api := v1.Group("", middleware.RequestTimeout(s.config.Server.WriteTimeout))
	if s.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
		api.Use(limiter.Middleware())
	}

	calc := s.deps.Calculators
	calculators := api.Group("/calculators")
	{
		calculators.POST("/has-bled", calculate(s, calc.HASBLED))
		calculators.POST("/maggic", calculate(s, calc.MAGGIC))
		calculators.POST("/case-plan", calculate(s, calc.CasePlan))
		calculators.POST("/mcs", calculate(s, calc.MCS))
		calculators.POST("/heparin", calculate(s, calc.Heparin))
		calculators.POST("/ablation", calculate(s, calc.Ablation))
	}

	reference := api.Group("/reference")
	{
		reference.GET("/conduits", s.handleConduits)
		reference.GET("/conduits/:type", s.handleConduit)
	}

	worklists := api.Group("/worklists")
	{
		worklists.GET("", s.handleWorklistSummaries)
		worklists.GET("/:filter", s.handleWorklist)
		worklists.GET("/:filter/export", s.handleWorklistExport)
	}

	api.GET("/patients/:id", s.handlePatient)
	api.GET("/patients/:id/assessments", s.handlePatientAssessments)
	assessments := api.Group("/assessments")
	{
		assessments.GET("", s.handleAssessments)
		assessments.GET("/export", s.handleAssessmentExport)
		assessments.POST("/import", s.handleAssessmentImport)
		assessments.GET("/:id", s.handleAssessment)
		assessments.DELETE("/:id", s.handleAssessmentDelete)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	body := gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
	}
	if s.deps.Calculators != nil {
		body["cache"] = s.deps.Calculators.CacheStats()
	}
	if s.deps.Feed != nil {
		body["feed_subscribers"] = s.deps.Feed.Count()
	}

	c.JSON(status, body)
}

func (s *Server) handleFeed(c *gin.Context) {
	err := s.deps.Feed.ServeWS(c.Writer, c.Request, middleware.OriginAllowed(s.config.Server.AllowedOrigins))
	if err != nil {
		// the upgrader has already written the HTTP error
		s.logger.WithError(err).WithField("request_id", middleware.RequestID(c)).Debug("Feed upgrade failed")
	}
}
