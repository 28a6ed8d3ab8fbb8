package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/greenboardhq/greenboard/src/internal/cache"
	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
	"github.com/greenboardhq/greenboard/src/internal/metrics"
	"github.com/greenboardhq/greenboard/src/internal/search"
)

// Limit bounds, overridable through search.default_limit and
// search.max_limit.
const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchService executes federated searches across the registered
// sources, serving repeat queries from the response cache.
type SearchService struct {
	db           *gorm.DB
	cfg          *viper.Viper
	cache        *cache.ResponseCache
	metrics      *metrics.Metrics
	logger       *slog.Logger
	orchestrator *search.Orchestrator
	defaultLimit int
	maxLimit     int
}

// NewSearchService creates a new search service
func NewSearchService(db *gorm.DB, cfg *viper.Viper, responseCache *cache.ResponseCache, m *metrics.Metrics, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}

	sources := newSources(db, cfg.GetDuration("search.source_timeout"))

	defaultLimit := cfg.GetInt("search.default_limit")
	if defaultLimit <= 0 {
		defaultLimit = defaultSearchLimit
	}
	maxLimit := cfg.GetInt("search.max_limit")
	if maxLimit <= 0 {
		maxLimit = maxSearchLimit
	}

	return &SearchService{
		db:           db,
		cfg:          cfg,
		cache:        responseCache,
		metrics:      m,
		logger:       logger,
		orchestrator: search.NewOrchestrator(logger, sources...),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Execute runs one search: validate, check the cache, fan out on miss,
// rank and merge, aggregate facets when asked, then cache the response.
// Only successful responses are cached; a cache-write failure is logged
// and swallowed.
func (s *SearchService) Execute(ctx context.Context, q search.Query) (*search.SearchResponse, error) {
	start := time.Now()

	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	// Normalization precedes keying so logically identical queries share
	// one cache entry.
	key := search.CacheKey(q)
	if s.cache != nil {
		var cached search.SearchResponse
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("failed to decode cached response", "key", key, "error", err)
		} else if hit {
			if s.metrics != nil {
				s.metrics.CacheMetrics(true)
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMetrics(false)
		}
	}

	fanout, err := s.orchestrator.Run(ctx, q)
	if err != nil {
		return nil, err
	}

	results, total := search.RankAndMerge(fanout, q.FreeText, q.Limit)

	resp := &search.SearchResponse{
		Results:   results,
		Total:     total,
		Sources:   fanout.Statuses,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if q.IncludeFacets {
		resp.Facets = search.Aggregate(fanout)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, resp, cacheTags(fanout.Order)...); err != nil {
			s.logger.Warn("failed to cache search response", "key", key, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.SearchMetrics(len(results), time.Since(start))
		for _, status := range fanout.Statuses {
			s.metrics.SourceMetrics(string(status.Source), status.OK, time.Duration(status.ElapsedMs)*time.Millisecond)
		}
	}

	return resp, nil
}

// Suggestions returns completion suggestions for a partial query.
func (s *SearchService) Suggestions(partial string) []string {
	return search.Suggest(partial)
}

// normalize trims the query text, applies limit defaulting and clamping,
// and rejects malformed filters before any source is touched.
func (s *SearchService) normalize(q search.Query) (search.Query, error) {
	q.FreeText = strings.TrimSpace(q.FreeText)

	if q.Limit < 0 {
		return q, apperrors.NewValidationError("limit must not be negative", "limit")
	}
	if q.Limit == 0 {
		q.Limit = s.defaultLimit
	}
	if q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}

	for _, t := range q.Filters.ContentTypes {
		if !t.Valid() {
			return q, apperrors.NewValidationError("unknown content type: "+string(t), "content_types")
		}
	}

	if q.Filters.DateRange != "" {
		if _, ok := search.DateRangeWindow(q.Filters.DateRange); !ok {
			return q, apperrors.NewValidationError("unknown date range: "+q.Filters.DateRange, "date_range")
		}
	}

	return q, nil
}

// cacheTags labels a cached response with the shared api_data tag plus
// one tag per source that contributed, so a single source can be flushed
// without dropping the rest.
func cacheTags(order []search.SourceType) []string {
	tags := make([]string, 0, len(order)+1)
	tags = append(tags, cache.TagAPIData)
	for _, t := range order {
		tags = append(tags, "source:"+string(t))
	}
	return tags
}
