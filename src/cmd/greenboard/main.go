package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	"github.com/greenboardhq/greenboard/src/internal/config"
	"github.com/greenboardhq/greenboard/src/internal/database"
	"github.com/greenboardhq/greenboard/src/internal/metrics"
	"github.com/greenboardhq/greenboard/src/internal/search"
	"github.com/greenboardhq/greenboard/src/internal/server"
	"github.com/greenboardhq/greenboard/src/internal/services"
	"github.com/greenboardhq/greenboard/src/pkg/utils"
)

var (
	Version = "dev"
)

func main() {
	// Setup logging
	setupLogging()

	args := os.Args[1:]

	// Handle commands first
	if len(args) > 0 {
		switch args[0] {
		case "seed":
			if err := handleSeedCommand(); err != nil {
				log.Fatalf("Seed failed: %v", err)
			}
			return
		case "search":
			if err := handleSearchCommand(args[1:]); err != nil {
				log.Fatalf("Search failed: %v", err)
			}
			return
		case "migrate":
			if err := handleMigrateCommand(args[1:]); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
			return
		case "--version", "-v":
			fmt.Printf("Greenboard v%s\n", Version)
			os.Exit(0)
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		}
	}

	// Handle remaining flags
	for _, arg := range args {
		switch arg {
		case "--version", "-v":
			fmt.Printf("Greenboard v%s\n", Version)
			os.Exit(0)
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--config-check":
			if err := handleConfigCheckCommand(); err != nil {
				log.Fatalf("Configuration check failed: %v", err)
			}
			return
		case "--dry-run":
			if err := handleDryRunCommand(); err != nil {
				log.Fatalf("Dry run failed: %v", err)
			}
			return
		case "--status":
			if err := handleStatusCommand(); err != nil {
				log.Fatalf("Status check failed: %v", err)
			}
			return
		}
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Set("version", Version)

	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get the underlying SQL DB for closing
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.MigrateDB(db, cfg.GetString("database.type")); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Initialize server
	srv := server.New(e, cfg, db)

	// Get configured port
	port := cfg.GetInt("server.port")
	if port == 0 {
		// No port specified, pick a random one from the high range
		port, err = config.SelectRandomPort()
		if err != nil {
			log.Fatalf("Failed to select port: %v", err)
		}
		cfg.Set("server.port", port)
	}

	log.Printf("Greenboard v%s starting on port %d", Version, port)
	log.Printf("🌐 %s", server.NewNetworkDetector().AnnounceURL(port))

	// Set up graceful shutdown
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.GetString("server.host"), port)
		if err := srv.Start(context.Background(), address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}

func printHelp() {
	fmt.Printf(`Greenboard v%s - Federated climate career search

Usage:
  greenboard [options] [command]

Commands:
  seed        Load demo jobs, resources, partners, and programs
  search      Run a one-off search from the command line
  migrate     Apply, roll back, or inspect schema migrations

Options:
  -h, --help         Show this help message
  -v, --version      Show version information
  --config-check     Validate configuration file
  --dry-run          Test configuration without starting server
  --status           Show server status

Environment Variables:
  GREENBOARD_PATHS_DATA       Main data directory (default: /var/lib/greenboard)
  GREENBOARD_LOG_DIR          Log directory (default: /var/log/greenboard)
  GREENBOARD_SERVER_PORT      Server port (default: 8080, 0 = random 64000-64999)
  GREENBOARD_DATABASE_TYPE    Database type: sqlite|postgres|mysql
  GREENBOARD_CACHE_TTL        Response cache TTL (default: 5m)

Examples:
  greenboard                  Start the server
  greenboard seed             Load demo records
  greenboard search "solar"   Search from the command line
  greenboard --config-check   Validate configuration

For more information, visit: https://github.com/greenboardhq/greenboard
`, Version)
}

// handleSeedCommand loads the demo dataset
func handleSeedCommand() error {
	fmt.Println("🌱 Seeding demo records...")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := database.MigrateDB(db, cfg.GetString("database.type")); err != nil {
		return err
	}

	if err := database.Seed(db); err != nil {
		return err
	}

	fmt.Println("✅ Demo records ready")
	return nil
}

// handleSearchCommand runs one search from the command line
func handleSearchCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: greenboard search <text>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	responseCache := cache.NewResponseCache(
		cfg.GetDuration("cache.ttl"),
		cfg.GetInt("cache.max_entries"),
	)
	svc := services.NewSearchService(db, cfg, responseCache, metrics.NewMetrics(db), slog.Default())

	controller := search.NewController(svc, search.ControllerConfig{
		Debounce:      cfg.GetDuration("search.debounce"),
		AutoSearch:    cfg.GetBool("search.auto_search"),
		Limit:         cfg.GetInt("search.default_limit"),
		IncludeFacets: true,
	})

	text := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := controller.SearchFor(ctx, text, search.FilterSet{})
	if err != nil {
		return err
	}

	fmt.Printf("🔍 %d of %d matches in %dms\n\n", len(resp.Results), resp.Total, resp.ElapsedMs)
	for i, result := range resp.Results {
		fmt.Printf("%2d. [%.2f] %-8s %s\n", i+1, result.Score, result.Record.Source, result.Record.Title)
		for _, highlight := range result.Highlights {
			fmt.Printf("        %s\n", highlight)
		}
	}

	if len(resp.Results) == 0 {
		for _, suggestion := range controller.Suggestions(text) {
			fmt.Printf("💡 Try: %s\n", suggestion)
		}
	}

	return nil
}

// handleMigrateCommand applies, rolls back, or inspects migrations
func handleMigrateCommand(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	dbType := cfg.GetString("database.type")

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		if err := database.MigrateDB(db, dbType); err != nil {
			return err
		}
		fmt.Println("✅ Migrations applied")
	case "down":
		manager, err := database.NewMigrationManager(db, dbType)
		if err != nil {
			return err
		}
		defer manager.Close()

		if err := manager.Down(1); err != nil {
			return err
		}
		fmt.Println("✅ Rolled back one migration")
	case "status":
		status, err := database.GetMigrationStatus(db, dbType)
		if err != nil {
			return err
		}
		fmt.Println("📊 Migration status:")
		for key, value := range status {
			fmt.Printf("  %s: %v\n", key, value)
		}
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down, or status)", direction)
	}

	return nil
}

// handleConfigCheckCommand validates configuration without starting server
func handleConfigCheckCommand() error {
	fmt.Println("🔍 Checking Greenboard configuration...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuration loading failed: %v\n", err)
		return err
	}
	fmt.Println("✅ Configuration loaded successfully")

	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("❌ Configuration invalid: %v\n", err)
		return err
	}
	fmt.Println("✅ Configuration values valid")

	if err := testDatabaseConnection(cfg); err != nil {
		fmt.Printf("❌ Database connection failed: %v\n", err)
		return err
	}
	fmt.Println("✅ Database connection successful")

	fmt.Println("\n🎉 Configuration is valid and ready!")
	return nil
}

// handleDryRunCommand tests configuration without starting server
func handleDryRunCommand() error {
	fmt.Println("🧪 Running Greenboard in dry-run mode...")

	// First run config check
	if err := handleConfigCheckCommand(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize database (but don't run migrations)
	db, err := database.Initialize(cfg)
	if err != nil {
		fmt.Printf("❌ Database initialization failed: %v\n", err)
		return err
	}
	defer closeDatabase(db)

	fmt.Println("✅ Database initialized successfully")

	// Report current schema version
	if status, err := database.GetMigrationStatus(db, cfg.GetString("database.type")); err == nil {
		fmt.Printf("✅ Schema version: %v\n", status["current_version"])
	}

	// Test port availability
	port := cfg.GetInt("server.port")
	if port == 0 {
		port, err = config.SelectRandomPort()
		if err != nil {
			fmt.Printf("❌ Port selection failed: %v\n", err)
			return err
		}
	}

	if err := testPortAvailability(port); err != nil {
		fmt.Printf("❌ Port %d not available: %v\n", port, err)
		return err
	}
	fmt.Printf("✅ Port %d is available\n", port)

	fmt.Printf("\n🎉 Dry run successful! Server would start on port %d\n", port)
	return nil
}

// handleStatusCommand shows server status
func handleStatusCommand() error {
	fmt.Println("📊 Checking Greenboard server status...")

	// Probe the configured port first, then the defaults
	var ports []int
	if cfg, err := config.Load(); err == nil {
		if configured := cfg.GetInt("server.port"); configured > 0 {
			ports = append(ports, configured)
		}
	}
	for _, port := range []int{8080, 64000, 64001, 64002, 64003, 64004} {
		if len(ports) == 0 || port != ports[0] {
			ports = append(ports, port)
		}
	}

	var runningPort int
	var serverResponse map[string]interface{}

	for _, port := range ports {
		if resp, err := checkServerHealth(port); err == nil {
			runningPort = port
			serverResponse = resp
			break
		}
	}

	if runningPort == 0 {
		fmt.Println("❌ No Greenboard server detected")
		fmt.Println("💡 Start server with: greenboard")
		return nil
	}

	fmt.Printf("✅ Greenboard server running on port %d\n", runningPort)

	if serverResponse != nil {
		if version, ok := serverResponse["version"].(string); ok {
			fmt.Printf("📦 Version: %s\n", version)
		}
		if uptime, ok := serverResponse["uptime"].(string); ok {
			fmt.Printf("⏱️  Uptime: %s\n", uptime)
		}
		if status, ok := serverResponse["status"].(string); ok {
			fmt.Printf("🟢 Status: %s\n", status)
		}
		if m, ok := serverResponse["metrics"].(map[string]interface{}); ok {
			if entries, ok := m["cache_entries"].(float64); ok {
				fmt.Printf("🗃️  Cached responses: %.0f\n", entries)
			}
			if hits, ok := m["cache_hits"].(float64); ok {
				fmt.Printf("🎯 Cache hits: %.0f\n", hits)
			}
		}
	}

	return nil
}

// Helper functions
func testDatabaseConnection(cfg *viper.Viper) error {
	db, err := database.Initialize(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	// Simple ping test
	if sqlDB, err := db.DB(); err == nil {
		return sqlDB.Ping()
	}
	return nil
}

func testPortAvailability(port int) error {
	conn, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func checkServerHealth(port int) (map[string]interface{}, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/healthz", port))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// setupLogging configures pretty console output and server.log file
func setupLogging() {
	// Get log directory from environment or use default
	logDir := os.Getenv("GREENBOARD_LOG_DIR")
	if logDir == "" {
		logDir = "/var/log/greenboard"
	}

	logWriter := io.Writer(os.Stdout)

	// Try to create log directory and server.log
	if err := os.MkdirAll(logDir, 0755); err == nil {
		serverLogPath := filepath.Join(logDir, "server.log")
		if logFile, err := os.OpenFile(serverLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			// Setup multi-writer for both console and file
			logWriter = io.MultiWriter(os.Stdout, logFile)
			log.SetOutput(logWriter)
			log.Printf("✓ Server logging: %s", serverLogPath)
		}
	}

	// Set log format flags for prettier output
	log.SetFlags(log.Ldate | log.Ltime)

	// Route structured logs through the same writer
	slog.SetDefault(utils.NewLogger(logWriter))
}
