package metrics

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/database/models"
)

// Metrics represents application metrics
type Metrics struct {
	mu         sync.RWMutex
	db         *gorm.DB
	startTime  time.Time
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]*Histogram
}

// Histogram represents a histogram metric
type Histogram struct {
	mu     sync.RWMutex
	values []float64
	sum    float64
	count  int64
}

// MetricsSnapshot represents a point-in-time view of metrics
type MetricsSnapshot struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Version     string                    `json:"version"`
	GoVersion   string                    `json:"go_version"`
	Counters    map[string]int64          `json:"counters"`
	Gauges      map[string]float64        `json:"gauges"`
	Histograms  map[string]HistogramStats `json:"histograms"`
	System      SystemMetrics             `json:"system"`
	Database    DatabaseMetrics           `json:"database"`
	Application ApplicationMetrics        `json:"application"`
}

// HistogramStats represents histogram statistics
type HistogramStats struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
}

// SystemMetrics represents system-level metrics
type SystemMetrics struct {
	GoRoutines  int    `json:"goroutines"`
	MemoryUsed  uint64 `json:"memory_used"`
	MemoryTotal uint64 `json:"memory_total"`
	CPUCount    int    `json:"cpu_count"`
	GCPauses    uint64 `json:"gc_pauses"`
	HeapObjects uint64 `json:"heap_objects"`
	StackInUse  uint64 `json:"stack_in_use"`
}

// DatabaseMetrics represents database-related metrics
type DatabaseMetrics struct {
	Jobs      int64 `json:"jobs"`
	Resources int64 `json:"resources"`
	Partners  int64 `json:"partners"`
	Programs  int64 `json:"programs"`
}

// ApplicationMetrics represents application-specific metrics
type ApplicationMetrics struct {
	ActiveJobs int64 `json:"active_jobs"`
	RecentJobs int64 `json:"recent_jobs"`
}

// NewMetrics creates a new metrics instance
func NewMetrics(db *gorm.DB) *Metrics {
	return &Metrics{
		db:         db,
		startTime:  time.Now(),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*Histogram),
	}
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter metric by a specific value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge metric value
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// RecordHistogram records a value in a histogram
func (m *Metrics) RecordHistogram(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist, exists := m.histograms[name]
	if !exists {
		hist = &Histogram{
			values: make([]float64, 0, 1000), // Pre-allocate for performance
		}
		m.histograms[name] = hist
	}

	hist.mu.Lock()
	defer hist.mu.Unlock()

	hist.values = append(hist.values, value)
	hist.sum += value
	hist.count++

	// Keep only the last 1000 values to prevent memory growth
	if len(hist.values) > 1000 {
		hist.values = hist.values[len(hist.values)-1000:]
	}
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot(version string) MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy counters
	counters := make(map[string]int64)
	for k, v := range m.counters {
		counters[k] = v
	}

	// Copy gauges
	gauges := make(map[string]float64)
	for k, v := range m.gauges {
		gauges[k] = v
	}

	// Calculate histogram stats
	histograms := make(map[string]HistogramStats)
	for name, hist := range m.histograms {
		histograms[name] = hist.getStats()
	}

	return MetricsSnapshot{
		Timestamp:   time.Now(),
		Uptime:      time.Since(m.startTime).String(),
		Version:     version,
		GoVersion:   runtime.Version(),
		Counters:    counters,
		Gauges:      gauges,
		Histograms:  histograms,
		System:      m.getSystemMetrics(),
		Database:    m.getDatabaseMetrics(),
		Application: m.getApplicationMetrics(),
	}
}

// getStats calculates histogram statistics
func (h *Histogram) getStats() HistogramStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramStats{}
	}

	stats := HistogramStats{
		Count:   h.count,
		Sum:     h.sum,
		Average: h.sum / float64(h.count),
	}

	if len(h.values) > 0 {
		// Sort values for percentile calculation
		sorted := make([]float64, len(h.values))
		copy(sorted, h.values)

		// Simple insertion sort for small arrays
		for i := 1; i < len(sorted); i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}

		stats.Min = sorted[0]
		stats.Max = sorted[len(sorted)-1]
		stats.P50 = percentile(sorted, 0.5)
		stats.P95 = percentile(sorted, 0.95)
		stats.P99 = percentile(sorted, 0.99)
	}

	return stats
}

// percentile calculates the percentile of a sorted slice
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// getSystemMetrics collects system-level metrics
func (m *Metrics) getSystemMetrics() SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemMetrics{
		GoRoutines:  runtime.NumGoroutine(),
		MemoryUsed:  mem.Alloc,
		MemoryTotal: mem.TotalAlloc,
		CPUCount:    runtime.NumCPU(),
		GCPauses:    mem.PauseTotalNs,
		HeapObjects: mem.HeapObjects,
		StackInUse:  mem.StackInuse,
	}
}

// getDatabaseMetrics collects database-related metrics
func (m *Metrics) getDatabaseMetrics() DatabaseMetrics {
	var metrics DatabaseMetrics

	if m.db != nil {
		// Count jobs
		m.db.Model(&models.Job{}).Count(&metrics.Jobs)

		// Count resources
		m.db.Model(&models.Resource{}).Count(&metrics.Resources)

		// Count partners
		m.db.Model(&models.Partner{}).Count(&metrics.Partners)

		// Count programs
		m.db.Model(&models.Program{}).Count(&metrics.Programs)
	}

	return metrics
}

// getApplicationMetrics collects application-specific metrics
func (m *Metrics) getApplicationMetrics() ApplicationMetrics {
	var metrics ApplicationMetrics

	if m.db != nil {
		// Count active job postings
		m.db.Model(&models.Job{}).Where("is_active = ?", true).Count(&metrics.ActiveJobs)

		// Count jobs posted within the last 30 days
		thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
		m.db.Model(&models.Job{}).Where("created_at > ?", thirtyDaysAgo).Count(&metrics.RecentJobs)
	}

	return metrics
}

// ToJSON converts metrics snapshot to JSON
func (m *MetricsSnapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// MetricsCollector collects metrics periodically
type MetricsCollector struct {
	metrics *Metrics
	ticker  *time.Ticker
	done    chan bool
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(metrics *Metrics, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics: metrics,
		ticker:  time.NewTicker(interval),
		done:    make(chan bool),
	}
}

// Start begins collecting metrics
func (mc *MetricsCollector) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-mc.ticker.C:
				mc.collectSystemMetrics()
			case <-mc.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops collecting metrics
func (mc *MetricsCollector) Stop() {
	mc.ticker.Stop()
	close(mc.done)
}

// collectSystemMetrics collects system metrics periodically
func (mc *MetricsCollector) collectSystemMetrics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	mc.metrics.SetGauge("system.goroutines", float64(runtime.NumGoroutine()))
	mc.metrics.SetGauge("system.memory.used", float64(mem.Alloc))
	mc.metrics.SetGauge("system.memory.heap_objects", float64(mem.HeapObjects))
	mc.metrics.SetGauge("system.gc.num", float64(mem.NumGC))
}

// RequestMetrics tracks HTTP request metrics
func (m *Metrics) RequestMetrics(method, path string, statusCode int, duration time.Duration) {
	// Increment request counter
	m.IncrementCounter("http.requests.total")
	m.IncrementCounter("http.requests." + method)
	m.IncrementCounter("http.requests.status." + strconv.Itoa(statusCode/100) + "xx")

	// Record response time
	m.RecordHistogram("http.request.duration", duration.Seconds())
	m.RecordHistogram("http.request.duration."+method, duration.Seconds())
}

// SearchMetrics tracks search metrics
func (m *Metrics) SearchMetrics(resultCount int, duration time.Duration) {
	m.IncrementCounter("search.queries.total")
	m.RecordHistogram("search.duration", duration.Seconds())
	m.RecordHistogram("search.results", float64(resultCount))
}

// CacheMetrics tracks response cache effectiveness
func (m *Metrics) CacheMetrics(hit bool) {
	m.IncrementCounter("cache.lookups.total")
	if hit {
		m.IncrementCounter("cache.lookups.hit")
	} else {
		m.IncrementCounter("cache.lookups.miss")
	}
}

// SourceMetrics tracks per-source fanout outcomes
func (m *Metrics) SourceMetrics(source string, success bool, duration time.Duration) {
	m.IncrementCounter("search.source." + source + ".queries")
	if !success {
		m.IncrementCounter("search.source." + source + ".failures")
	}
	m.RecordHistogram("search.source."+source+".duration", duration.Seconds())
}
