package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
)

// Load loads configuration from environment variables and config files
func Load() (*viper.Viper, error) {
	v := viper.New()

	// Set config type
	v.SetConfigType("yaml")

	// Set environment variable prefix
	v.SetEnvPrefix("GREENBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Resolve paths with variable substitution
	resolvePaths(v)

	// Load config file if exists
	configPaths := []string{
		v.GetString("paths.config"),
		".",
		"/etc/greenboard",
	}

	for _, path := range configPaths {
		v.AddConfigPath(path)
	}
	v.SetConfigName("config")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Assemble the database DSN when not given explicitly
	buildDSN(v)

	return v, nil
}

func setDefaults(v *viper.Viper) {
	// Path defaults
	if runtime.GOOS == "windows" {
		v.SetDefault("paths.data", expandPath("%PROGRAMDATA%\\greenboard"))
		v.SetDefault("paths.logs", expandPath("%PROGRAMDATA%\\greenboard\\logs"))
		v.SetDefault("paths.cache", expandPath("%PROGRAMDATA%\\greenboard\\cache"))
		v.SetDefault("paths.temp", expandPath("%TEMP%\\greenboard"))
		v.SetDefault("paths.config", expandPath("%PROGRAMDATA%\\greenboard\\config"))
	} else {
		v.SetDefault("paths.data", "/var/lib/greenboard")
		v.SetDefault("paths.logs", "/var/log/greenboard")
		v.SetDefault("paths.cache", "/var/cache/greenboard")
		v.SetDefault("paths.temp", "/tmp/greenboard")
		v.SetDefault("paths.config", "/etc/greenboard")
	}

	// Runtime defaults
	v.SetDefault("debug", false)
	v.SetDefault("environment", "development")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "{paths.data}/greenboard.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "greenboard")
	v.SetDefault("database.user", "greenboard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_time", 300)

	// Server defaults
	v.SetDefault("server.port", 8080) // 0 = random port selection
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.url", "") // Auto-detect if empty
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_path", "")
	v.SetDefault("server.tls.key_path", "")

	// Search defaults
	v.SetDefault("search.debounce", "300ms")
	v.SetDefault("search.source_timeout", "3s")
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.auto_search", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.clean_interval", "1m")

	// Rate limiting defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	// CORS defaults
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("cors.methods", "GET, POST, OPTIONS")
	v.SetDefault("cors.headers", "Content-Type, X-Request-ID")
	v.SetDefault("cors.max_age", 300)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.collect_interval", "30s")

	// Feature flags
	v.SetDefault("features.facets", true)
	v.SetDefault("features.suggestions", true)
	v.SetDefault("features.admin", true)
}

// buildDSN fills database.dsn from the individual connection settings
// when no explicit DSN was configured.
func buildDSN(v *viper.Viper) {
	if v.GetString("database.dsn") != "" {
		return
	}

	switch v.GetString("database.type") {
	case "postgres", "postgresql":
		v.Set("database.dsn", fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			v.GetString("database.host"),
			v.GetInt("database.port"),
			v.GetString("database.user"),
			v.GetString("database.password"),
			v.GetString("database.name"),
		))
	case "mysql":
		v.Set("database.dsn", fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			v.GetString("database.user"),
			v.GetString("database.password"),
			v.GetString("database.host"),
			v.GetInt("database.port"),
			v.GetString("database.name"),
		))
	default:
		v.Set("database.dsn", v.GetString("database.path"))
	}
}

func resolvePaths(v *viper.Viper) {
	// Get all config keys
	for _, key := range v.AllKeys() {
		value := v.GetString(key)

		// Check if value contains variable substitution
		if strings.Contains(value, "{") && strings.Contains(value, "}") {
			resolved := value

			// Replace all {var} patterns
			for _, varKey := range v.AllKeys() {
				varPattern := fmt.Sprintf("{%s}", varKey)
				if strings.Contains(resolved, varPattern) {
					varValue := v.GetString(varKey)
					resolved = strings.ReplaceAll(resolved, varPattern, varValue)
				}
			}

			// Expand environment variables
			resolved = expandPath(resolved)

			v.Set(key, resolved)
		}
	}
}

func expandPath(path string) string {
	// Expand environment variables
	path = os.ExpandEnv(path)

	// Expand home directory
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}

	// Clean the path
	return filepath.Clean(path)
}

// ValidateConfig validates the configuration
func ValidateConfig(v *viper.Viper) error {
	// Validate database configuration
	dbType := v.GetString("database.type")
	switch dbType {
	case "sqlite":
		if v.GetString("database.dsn") == "" && v.GetString("database.path") == "" {
			return apperrors.ConfigError("database.path", "database.path is required for SQLite")
		}
	case "postgres", "postgresql", "mysql":
		if v.GetString("database.host") == "" {
			return apperrors.ConfigError("database.host", fmt.Sprintf("database.host is required for %s", dbType))
		}
		if v.GetString("database.user") == "" {
			return apperrors.ConfigError("database.user", fmt.Sprintf("database.user is required for %s", dbType))
		}
	default:
		return apperrors.ConfigError("database.type", fmt.Sprintf("unsupported database type: %s", dbType))
	}

	// Validate server configuration
	port := v.GetInt("server.port")
	if port < 0 || port > 65535 {
		return apperrors.ConfigError("server.port", fmt.Sprintf("invalid server port: %d", port))
	}

	// Validate search configuration
	if v.GetDuration("search.debounce") <= 0 {
		return apperrors.ConfigError("search.debounce", "search.debounce must be a positive duration")
	}
	if v.GetDuration("search.source_timeout") <= 0 {
		return apperrors.ConfigError("search.source_timeout", "search.source_timeout must be a positive duration")
	}
	defaultLimit := v.GetInt("search.default_limit")
	maxLimit := v.GetInt("search.max_limit")
	if defaultLimit <= 0 {
		return apperrors.ConfigError("search.default_limit", "search.default_limit must be positive")
	}
	if maxLimit < defaultLimit {
		return apperrors.ConfigError("search.max_limit", "search.max_limit must not be below search.default_limit")
	}

	// Validate cache configuration
	if v.GetDuration("cache.ttl") <= 0 {
		return apperrors.ConfigError("cache.ttl", "cache.ttl must be a positive duration")
	}
	if v.GetInt("cache.max_entries") <= 0 {
		return apperrors.ConfigError("cache.max_entries", "cache.max_entries must be positive")
	}

	return nil
}

// SelectRandomPort selects a random port in the high range (64000-64999)
func SelectRandomPort() (int, error) {
	const minPort = 64000
	const maxPort = 64999

	for attempts := 0; attempts < 50; attempts++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(maxPort-minPort+1)))
		if err != nil {
			return 0, fmt.Errorf("failed to generate random number: %w", err)
		}

		port := int(n.Int64()) + minPort

		// Test port availability
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports in range %d-%d", minPort, maxPort)
}
