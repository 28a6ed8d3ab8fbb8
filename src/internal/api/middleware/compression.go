package middleware

import (
	"compress/gzip"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
)

// Compression returns gzip middleware for API responses. Bodies below
// the minimum size are sent uncompressed.
func Compression(cfg *viper.Viper) echo.MiddlewareFunc {
	level := cfg.GetInt("performance.compression_level")
	if level == 0 {
		level = gzip.DefaultCompression
	}

	minSize := cfg.GetInt("performance.compression_min_size")
	if minSize == 0 {
		minSize = 1024 // 1KB
	}

	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     level,
		MinLength: minSize,
	})
}
