package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/greenboardhq/greenboard/src/internal/metrics"
)

// MetricsMiddleware creates middleware for collecting HTTP metrics
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Process request
			err := next(c)

			// Calculate duration
			duration := time.Since(start)

			// Get response status
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}

			// Record metrics
			m.RequestMetrics(
				c.Request().Method,
				c.Path(),
				status,
				duration,
			)

			return err
		}
	}
}

// MetricsHandler provides metrics endpoint
func MetricsHandler(m *metrics.Metrics, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		snapshot := m.GetSnapshot(version)

		// Check format parameter
		format := c.QueryParam("format")
		if format == "json" || c.Request().Header.Get("Accept") == "application/json" {
			return c.JSON(200, snapshot)
		}

		// Return Prometheus format by default
		return c.String(200, formatPrometheus(snapshot))
	}
}

// formatPrometheus formats metrics in Prometheus exposition format
func formatPrometheus(snapshot metrics.MetricsSnapshot) string {
	var result string

	// Add metadata
	result += "# HELP greenboard_info Application information\n"
	result += "# TYPE greenboard_info gauge\n"
	result += "greenboard_info{version=\"" + snapshot.Version + "\",go_version=\"" + snapshot.GoVersion + "\"} 1\n\n"

	// Add uptime
	uptimeSeconds := int64(0)
	if uptime, err := time.ParseDuration(snapshot.Uptime); err == nil {
		uptimeSeconds = int64(uptime.Seconds())
	}
	result += "# HELP greenboard_uptime_seconds Total uptime in seconds\n"
	result += "# TYPE greenboard_uptime_seconds counter\n"
	result += "greenboard_uptime_seconds " + strconv.FormatInt(uptimeSeconds, 10) + "\n\n"

	// Add counters
	for name, value := range snapshot.Counters {
		metricName := "greenboard_" + sanitizeMetricName(name)
		result += "# HELP " + metricName + " Counter metric\n"
		result += "# TYPE " + metricName + " counter\n"
		result += metricName + " " + strconv.FormatInt(value, 10) + "\n\n"
	}

	// Add gauges
	for name, value := range snapshot.Gauges {
		metricName := "greenboard_" + sanitizeMetricName(name)
		result += "# HELP " + metricName + " Gauge metric\n"
		result += "# TYPE " + metricName + " gauge\n"
		result += metricName + " " + strconv.FormatFloat(value, 'f', -1, 64) + "\n\n"
	}

	// Add histogram summaries
	for name, hist := range snapshot.Histograms {
		baseName := "greenboard_" + sanitizeMetricName(name)

		result += "# HELP " + baseName + " Histogram metric\n"
		result += "# TYPE " + baseName + " histogram\n"
		result += baseName + "_count " + strconv.FormatInt(hist.Count, 10) + "\n"
		result += baseName + "_sum " + strconv.FormatFloat(hist.Sum, 'f', -1, 64) + "\n"
		result += baseName + "_bucket{le=\"+Inf\"} " + strconv.FormatInt(hist.Count, 10) + "\n\n"
	}

	// Add system metrics
	result += "# HELP greenboard_system_goroutines Number of goroutines\n"
	result += "# TYPE greenboard_system_goroutines gauge\n"
	result += "greenboard_system_goroutines " + strconv.Itoa(snapshot.System.GoRoutines) + "\n\n"

	result += "# HELP greenboard_system_memory_used Memory used in bytes\n"
	result += "# TYPE greenboard_system_memory_used gauge\n"
	result += "greenboard_system_memory_used " + strconv.FormatUint(snapshot.System.MemoryUsed, 10) + "\n\n"

	// Add database metrics
	result += "# HELP greenboard_database_jobs Total number of job postings\n"
	result += "# TYPE greenboard_database_jobs gauge\n"
	result += "greenboard_database_jobs " + strconv.FormatInt(snapshot.Database.Jobs, 10) + "\n\n"

	result += "# HELP greenboard_database_resources Total number of resources\n"
	result += "# TYPE greenboard_database_resources gauge\n"
	result += "greenboard_database_resources " + strconv.FormatInt(snapshot.Database.Resources, 10) + "\n\n"

	result += "# HELP greenboard_database_partners Total number of partners\n"
	result += "# TYPE greenboard_database_partners gauge\n"
	result += "greenboard_database_partners " + strconv.FormatInt(snapshot.Database.Partners, 10) + "\n\n"

	result += "# HELP greenboard_database_programs Total number of training programs\n"
	result += "# TYPE greenboard_database_programs gauge\n"
	result += "greenboard_database_programs " + strconv.FormatInt(snapshot.Database.Programs, 10) + "\n\n"

	return result
}

// sanitizeMetricName converts metric names to Prometheus format
func sanitizeMetricName(name string) string {
	// Replace dots and other characters with underscores
	result := ""
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') {
			result += string(char)
		} else {
			result += "_"
		}
	}
	return result
}
