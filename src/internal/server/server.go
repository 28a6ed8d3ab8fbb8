package server

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	echoMiddleware "github.com/greenboardhq/greenboard/src/internal/api/middleware"
	"github.com/greenboardhq/greenboard/src/internal/cache"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/metrics"
	"github.com/greenboardhq/greenboard/src/internal/services"
)

// Server represents the main application server
type Server struct {
	echo          *echo.Echo
	config        *viper.Viper
	db            *gorm.DB
	cache         *cache.ResponseCache
	metrics       *metrics.Metrics
	collector     *metrics.MetricsCollector
	searchService *services.SearchService
	rateLimiter   *echoMiddleware.RateLimiter
	network       *NetworkDetector
	logger        *slog.Logger
	startTime     time.Time
}

// New creates a new server instance
func New(e *echo.Echo, cfg *viper.Viper, db *gorm.DB) *Server {
	logger := slog.Default()

	// Initialize response cache
	responseCache := cache.NewResponseCache(
		cfg.GetDuration("cache.ttl"),
		cfg.GetInt("cache.max_entries"),
	)

	// Initialize metrics registry
	m := metrics.NewMetrics(db)

	collectInterval := cfg.GetDuration("metrics.collect_interval")
	if collectInterval <= 0 {
		collectInterval = 30 * time.Second
	}

	// Initialize search service
	searchService := services.NewSearchService(db, cfg, responseCache, m, logger)

	s := &Server{
		echo:          e,
		config:        cfg,
		db:            db,
		cache:         responseCache,
		metrics:       m,
		collector:     metrics.NewMetricsCollector(m, collectInterval),
		searchService: searchService,
		rateLimiter:   echoMiddleware.NewRateLimiter(cfg),
		network:       NewNetworkDetector(),
		logger:        logger,
		startTime:     time.Now(),
	}

	// Setup validator and error handling
	e.Validator = NewEchoValidator()
	e.HTTPErrorHandler = apperrors.NewErrorHandler(cfg, logger).HTTPErrorHandler

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Start starts the server and background services
func (s *Server) Start(ctx context.Context, address string) error {
	// Collect system metrics in background
	if s.config.GetBool("metrics.enabled") {
		s.collector.Start(ctx)
	}

	// Evict expired cache entries in background
	go s.runCacheJanitor(ctx)

	if s.config.GetBool("server.tls.enabled") {
		return s.echo.StartTLS(address,
			s.config.GetString("server.tls.cert_path"),
			s.config.GetString("server.tls.key_path"))
	}

	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.collector != nil {
		s.collector.Stop()
	}
	s.rateLimiter.Stop()

	return s.echo.Shutdown(ctx)
}

// runCacheJanitor evicts expired cache entries on a fixed interval so
// idle entries do not linger until their next lookup.
func (s *Server) runCacheJanitor(ctx context.Context) {
	interval := s.config.GetDuration("cache.clean_interval")
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.cache.CleanExpired(ctx); removed > 0 {
				s.logger.Debug("cache janitor evicted entries", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) setupMiddleware() {
	// Pretty console logging + Apache format file logging
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		// Pretty console format
		Format: "  ${time_rfc3339} | ${status} | ${latency_human} | ${method} ${uri}\n",
		Output: s.getConsoleWriter(),
	}))

	// Apache format to access.log file only
	accessLog := s.getAccessLogWriter()
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format:           `${remote_ip} - - [${time_custom}] "${method} ${uri} ${protocol}" ${status} ${bytes_out}` + "\n",
		CustomTimeFormat: "02/Jan/2006:15:04:05 -0700",
		Output:           accessLog,
		Skipper: func(c echo.Context) bool {
			// Skip when the log file could not be opened
			return accessLog == io.Discard
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	// Response compression
	s.echo.Use(echoMiddleware.Compression(s.config))

	// Request metrics middleware
	if s.config.GetBool("metrics.enabled") {
		s.echo.Use(echoMiddleware.MetricsMiddleware(s.metrics))
	}

	// CORS middleware
	s.echo.Use(echoMiddleware.CORS(s.config))

	// Security middleware
	s.echo.Use(echoMiddleware.Security(s.config))

	// Rate limiting middleware
	s.echo.Use(s.rateLimiter.Middleware())
}

// Note: setupRoutes is in routes.go

// HealthStatus represents the system health status
type HealthStatus struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime,omitempty"`
	Timestamp  string                 `json:"timestamp"`
	Components map[string]string      `json:"components"`
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
	Features   map[string]interface{} `json:"features,omitempty"`
}

func (s *Server) getSystemStatus() *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Version:   s.config.GetString("version"),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Components: map[string]string{
			"database": "healthy",
			"cache":    "healthy",
			"search":   "healthy",
		},
	}

	// Check database connectivity
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.Ping() != nil {
		status.Components["database"] = "critical"
		status.Components["search"] = "critical"
		status.Status = "unhealthy"
	}

	cacheStats := s.cache.Stats()
	status.Metrics = map[string]interface{}{
		"cache_entries": cacheStats.Entries,
		"cache_hits":    cacheStats.Hits,
		"cache_misses":  cacheStats.Misses,
	}

	status.Features = map[string]interface{}{
		"facets":      s.config.GetBool("features.facets"),
		"suggestions": s.config.GetBool("features.suggestions"),
		"admin":       s.config.GetBool("features.admin"),
		"auto_search": s.config.GetBool("search.auto_search"),
	}

	return status
}

// getConsoleWriter returns stdout for pretty console logging
func (s *Server) getConsoleWriter() io.Writer {
	return os.Stdout
}

// getAccessLogWriter returns file writer for Apache format access logs
func (s *Server) getAccessLogWriter() io.Writer {
	logDir := s.getLogDir()
	accessLogPath := filepath.Join(logDir, "access.log")

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Warning: Failed to create log directory %s: %v", logDir, err)
		return io.Discard
	}

	// Open log file in append mode
	logFile, err := os.OpenFile(accessLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("Warning: Failed to open access log %s: %v", accessLogPath, err)
		return io.Discard
	}

	log.Printf("✓ Access logging: %s", accessLogPath)
	return logFile
}

// getLogDir returns the log directory path
func (s *Server) getLogDir() string {
	if logDir := s.config.GetString("paths.logs"); logDir != "" {
		return logDir
	}
	// Default fallback
	return "/var/log/greenboard"
}
